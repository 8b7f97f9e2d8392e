// Package redis establishes the Redis connection used for the idempotency
// cache, with retrying connect logic and a healthcheck closure.
package redis
