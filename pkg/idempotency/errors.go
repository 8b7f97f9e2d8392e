package idempotency

import "errors"

var (
	// ErrCacheMiss is returned by Cache implementations when a key is absent.
	ErrCacheMiss = errors.New("idempotency: cache miss")

	// ErrStoreNil is returned when a Guard is constructed without a store.
	ErrStoreNil = errors.New("idempotency: store cannot be nil")
)
