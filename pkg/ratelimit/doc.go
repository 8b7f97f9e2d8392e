// Package ratelimit implements a token bucket rate limiter.
//
// The dispatch worker uses it to cap how many delivery attempts reach a
// downstream provider per unit time. State lives behind the Store interface;
// the in-memory store is sufficient for a single process and tests.
package ratelimit
