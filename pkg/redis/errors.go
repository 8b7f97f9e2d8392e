package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("redis: failed to parse connection string")
	ErrRedisNotReady                = errors.New("redis: server not ready")
	ErrHealthcheckFailed            = errors.New("redis: healthcheck failed")
)
