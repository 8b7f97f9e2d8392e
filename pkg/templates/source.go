package templates

import (
	"context"
	"fmt"
	"sync"
)

// Source resolves templates by id.
type Source interface {
	// Get returns the template with the given id or ErrTemplateNotFound.
	Get(ctx context.Context, templateID string) (Template, error)
}

// MemorySource is an in-memory Source for tests and static catalogs.
type MemorySource struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewMemorySource creates a source holding the given templates. Templates
// failing validation are rejected.
func NewMemorySource(tmpls ...Template) (*MemorySource, error) {
	s := &MemorySource{templates: make(map[string]Template, len(tmpls))}
	for _, tmpl := range tmpls {
		if err := tmpl.Validate(); err != nil {
			return nil, err
		}
		if _, exists := s.templates[tmpl.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate template id %q", ErrInvalidTemplate, tmpl.ID)
		}
		s.templates[tmpl.ID] = tmpl
	}
	return s, nil
}

func (s *MemorySource) Get(_ context.Context, templateID string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmpl, ok := s.templates[templateID]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, templateID)
	}
	return tmpl, nil
}

// Set adds or replaces a template.
func (s *MemorySource) Set(tmpl Template) error {
	if err := tmpl.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tmpl.ID] = tmpl
	return nil
}
