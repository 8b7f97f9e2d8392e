package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

func TestLRU(t *testing.T) {
	t.Parallel()

	t.Run("get and set", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRU[string, int](2, 0)
		c.Set("a", 1)

		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("evicts least recently used at capacity", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRU[string, int](2, 0)
		c.Set("a", 1)
		c.Set("b", 2)

		// Touch "a" so "b" becomes the eviction candidate.
		_, _ = c.Get("a")
		c.Set("c", 3)

		_, ok := c.Get("b")
		assert.False(t, ok)

		_, ok = c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("update refreshes value without growing", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRU[string, int](2, 0)
		c.Set("a", 1)
		c.Set("a", 2)

		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 2, v)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("expired entries are treated as absent", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRU[string, int](2, 10*time.Millisecond)
		c.Set("a", 1)

		time.Sleep(20 * time.Millisecond)

		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("delete removes entry", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRU[string, int](2, 0)
		c.Set("a", 1)
		c.Delete("a")

		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("non-positive capacity panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { cache.NewLRU[string, int](0, 0) })
	})
}
