package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// cacheKeyPrefix namespaces idempotency entries in a shared Redis instance.
const cacheKeyPrefix = "idempotency:"

// Cache is the fast-path lookup layer of the Guard. Implementations return
// ErrCacheMiss when the key is absent.
type Cache interface {
	Get(ctx context.Context, key string) (uuid.UUID, error)
	Set(ctx context.Context, key string, id uuid.UUID, ttl time.Duration) error
}

// RedisCache stores idempotency mappings in Redis under
// "idempotency:<key>" with a per-entry TTL.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed idempotency cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (uuid.UUID, error) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrCacheMiss
		}
		return uuid.Nil, err
	}

	id, err := uuid.Parse(val)
	if err != nil {
		// A corrupt entry behaves like a miss so the store lookup decides.
		return uuid.Nil, ErrCacheMiss
	}

	return id, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, id uuid.UUID, ttl time.Duration) error {
	return c.client.Set(ctx, cacheKeyPrefix+key, id.String(), ttl).Err()
}

// MemoryCache is an in-process Cache for tests and local development.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	id        uuid.UUID
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory idempotency cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (uuid.UUID, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || (!entry.expiresAt.IsZero() && entry.expiresAt.Before(time.Now())) {
		return uuid.Nil, ErrCacheMiss
	}

	return entry.id, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, id uuid.UUID, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = memoryCacheEntry{id: id, expiresAt: expiresAt}
	c.mu.Unlock()

	return nil
}
