package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSource reads templates from the templates table. The table is managed
// by migrations and treated as read-only here.
type PGSource struct {
	db *pgxpool.Pool
}

// NewPGSource creates a Postgres-backed template source.
func NewPGSource(db *pgxpool.Pool) (*PGSource, error) {
	if db == nil {
		return nil, ErrSourceNil
	}
	return &PGSource{db: db}, nil
}

func (s *PGSource) Get(ctx context.Context, templateID string) (Template, error) {
	const query = `
		SELECT id, channel, subject, body, required_variables
		FROM templates
		WHERE id = $1`

	var tmpl Template
	err := s.db.QueryRow(ctx, query, templateID).Scan(
		&tmpl.ID,
		&tmpl.Channel,
		&tmpl.Subject,
		&tmpl.Body,
		&tmpl.RequiredVariables,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, templateID)
		}
		return Template{}, fmt.Errorf("failed to load template %q: %w", templateID, err)
	}
	return tmpl, nil
}
