package templates

import (
	"context"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

// CachedSource wraps a Source with an LRU cache. Templates change rarely
// relative to how often the delivery pipeline renders them, so a short TTL
// keeps the backing source nearly idle without making edits invisible.
type CachedSource struct {
	source Source
	cache  *cache.LRU[string, Template]
}

// NewCachedSource wraps source with an LRU of the given capacity. A ttl of
// zero caches entries until they are evicted by capacity.
func NewCachedSource(source Source, capacity int, ttl time.Duration) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  cache.NewLRU[string, Template](capacity, ttl),
	}
}

func (s *CachedSource) Get(ctx context.Context, templateID string) (Template, error) {
	if tmpl, ok := s.cache.Get(templateID); ok {
		return tmpl, nil
	}

	tmpl, err := s.source.Get(ctx, templateID)
	if err != nil {
		return Template{}, err
	}

	s.cache.Set(templateID, tmpl)
	return tmpl, nil
}

// Invalidate drops a cached template so the next Get hits the source.
func (s *CachedSource) Invalidate(templateID string) {
	s.cache.Delete(templateID)
}
