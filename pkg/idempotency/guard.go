package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL bounds how long a cached idempotency mapping is trusted.
const DefaultTTL = 24 * time.Hour

// Store is the authoritative lookup behind the cache. It is implemented by
// the notification store; the bool result is false when no notification has
// the key.
type Store interface {
	FindByIdempotencyKey(ctx context.Context, key string) (uuid.UUID, bool, error)
}

// Guard resolves idempotency keys through the cache with an authoritative
// store fallback.
type Guard struct {
	cache  Cache
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithTTL overrides the cache entry time-to-live.
func WithTTL(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for best-effort cache write failures.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuard creates a Guard. The cache may be nil, in which case every
// resolve goes straight to the store.
func NewGuard(cache Cache, store Store, opts ...GuardOption) (*Guard, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	g := &Guard{
		cache:  cache,
		store:  store,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Resolve returns the notification id already registered for the key, if
// any. A cache hit returns immediately; a miss falls through to the store
// and back-fills the cache on a hit there.
func (g *Guard) Resolve(ctx context.Context, key string) (uuid.UUID, bool, error) {
	if g.cache != nil {
		id, err := g.cache.Get(ctx, key)
		switch {
		case err == nil:
			return id, true, nil
		case !errors.Is(err, ErrCacheMiss):
			// A broken cache degrades to store lookups, it never fails the
			// request.
			g.logger.WarnContext(ctx, "idempotency cache lookup failed",
				slog.String("error", err.Error()))
		}
	}

	id, found, err := g.store.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("idempotency store lookup: %w", err)
	}
	if !found {
		return uuid.Nil, false, nil
	}

	g.Remember(ctx, key, id)

	return id, true, nil
}

// Remember records the key to notification mapping in the cache. Failures
// are logged and swallowed: the store constraint remains authoritative and
// the worst case is one extra store lookup per duplicate.
func (g *Guard) Remember(ctx context.Context, key string, id uuid.UUID) {
	if g.cache == nil {
		return
	}

	if err := g.cache.Set(ctx, key, id, g.ttl); err != nil {
		g.logger.WarnContext(ctx, "failed to cache idempotency key",
			slog.String("notification_id", id.String()),
			slog.String("error", err.Error()))
	}
}
