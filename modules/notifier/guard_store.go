package notifier

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/idempotency"
)

// guardStore adapts a Store to the idempotency guard's lookup interface.
type guardStore struct {
	store Store
}

// GuardStore exposes the notification store as an idempotency lookup
// source for wiring the guard at startup.
func GuardStore(store Store) idempotency.Store {
	return guardStore{store: store}
}

func (g guardStore) FindByIdempotencyKey(ctx context.Context, key string) (uuid.UUID, bool, error) {
	n, err := g.store.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return n.ID, true, nil
}
