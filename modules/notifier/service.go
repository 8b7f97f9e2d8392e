package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/dispatch"
	"github.com/dmitrymomot/notifykit/pkg/idempotency"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Enqueuer is the slice of the dispatch queue the service needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, notificationID uuid.UUID, opts ...dispatch.EnqueueOption) (uuid.UUID, error)
}

// Service implements the accept path: validate, deduplicate, persist,
// enqueue. It also serves reads and the manual retry escape hatch.
type Service struct {
	store    Store
	logs     LogStore
	guard    *idempotency.Guard
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewService wires the accept path. The guard is optional: without it every
// request goes straight to the store, whose unique constraint still
// prevents duplicates.
func NewService(store Store, logs LogStore, guard *idempotency.Guard, enqueuer Enqueuer, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, ErrStorageNil
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		logs:     logs,
		guard:    guard,
		enqueuer: enqueuer,
		logger:   logger,
	}, nil
}

// CreateParams is one notification request.
type CreateParams struct {
	UserID     uuid.UUID         `json:"user_id"`
	TemplateID string            `json:"template_id"`
	Channel    string            `json:"channel"`
	Recipient  string            `json:"recipient"`
	Data       map[string]string `json:"data"`
}

// Validate checks the request shape. Recipient format is the channel's
// concern and is checked at delivery time.
func (p CreateParams) Validate() error {
	errs := NewValidationError()
	if p.UserID == uuid.Nil {
		errs.Add("user_id", "user_id is required")
	}
	if p.TemplateID == "" {
		errs.Add("template_id", "template_id is required")
	}
	if p.Channel == "" {
		errs.Add("channel", "channel is required")
	}
	if p.Recipient == "" {
		errs.Add("recipient", "recipient is required")
	}
	if errs.IsEmpty() {
		return nil
	}
	return errs
}

// CreateNotification accepts a notification request. Requests carrying the
// same user, template, and data resolve to the already-accepted record, so
// retried API calls never produce duplicate deliveries.
func (s *Service) CreateNotification(ctx context.Context, params CreateParams) (Notification, error) {
	if err := params.Validate(); err != nil {
		return Notification{}, err
	}

	key := idempotency.Key(params.UserID.String(), params.TemplateID, params.Data)

	if s.guard != nil {
		if id, found, err := s.guard.Resolve(ctx, key); err == nil && found {
			existing, err := s.store.GetByID(ctx, id)
			if err == nil {
				return existing, nil
			}
			// Stale cache entry pointing at a deleted record; fall
			// through to create.
		}
	}

	n := &Notification{
		UserID:         params.UserID,
		TemplateID:     params.TemplateID,
		Channel:        params.Channel,
		Recipient:      params.Recipient,
		Data:           params.Data,
		Status:         StatusPending,
		IdempotencyKey: key,
	}

	if err := s.store.Create(ctx, n); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			// Lost the insert race; the winner's record is the answer.
			existing, findErr := s.store.FindByIdempotencyKey(ctx, key)
			if findErr != nil {
				return Notification{}, fmt.Errorf("failed to resolve duplicate notification: %w", findErr)
			}
			return existing, nil
		}
		return Notification{}, fmt.Errorf("failed to create notification: %w", err)
	}

	if _, err := s.enqueuer.Enqueue(ctx, n.ID); err != nil {
		// The record stays pending; a manual retry or sweep can pick it
		// up later.
		return Notification{}, fmt.Errorf("failed to enqueue notification: %w", err)
	}

	if err := s.store.UpdateStatus(ctx, n.ID, StatusQueued); err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			return Notification{}, fmt.Errorf("failed to mark notification queued: %w", err)
		}
		// A worker already claimed the job and moved the record past
		// queued; its state is the truth now.
		current, getErr := s.store.GetByID(ctx, n.ID)
		if getErr != nil {
			return Notification{}, fmt.Errorf("failed to load notification after queue race: %w", getErr)
		}
		*n = current
	} else {
		n.Status = StatusQueued
	}

	if s.guard != nil {
		s.guard.Remember(ctx, key, n.ID)
	}

	s.logger.InfoContext(ctx, "notification accepted",
		logger.NotificationID(n.ID.String()),
		logger.UserID(n.UserID.String()),
		slog.String("channel", n.Channel),
		slog.String("template_id", n.TemplateID),
	)
	return *n, nil
}

// Get returns one notification by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Notification, error) {
	return s.store.GetByID(ctx, id)
}

// ListByUser returns a user's notifications, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error) {
	return s.store.ListByUser(ctx, userID, limit, offset)
}

// History returns the delivery attempts for a notification in order.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]DeliveryLog, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.logs.ListByNotification(ctx, id)
}

// Retry re-enqueues a failed notification. Anything not in the failed
// state returns ErrNotRetryable.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (Notification, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.Status != StatusFailed {
		return Notification{}, fmt.Errorf("%w: status is %s", ErrNotRetryable, n.Status)
	}

	if err := s.store.MarkRetrying(ctx, id, n.ErrorMessage); err != nil {
		return Notification{}, fmt.Errorf("failed to mark notification retrying: %w", err)
	}
	if _, err := s.enqueuer.Enqueue(ctx, id); err != nil {
		return Notification{}, fmt.Errorf("failed to re-enqueue notification: %w", err)
	}

	s.logger.InfoContext(ctx, "notification retry requested",
		logger.NotificationID(id.String()),
	)
	return s.store.GetByID(ctx, id)
}
