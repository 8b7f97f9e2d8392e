package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists notifications and enforces the status machine. Every
// status-changing method applies the transition guard in a single atomic
// operation; a call that would violate the lifecycle returns
// ErrInvalidTransition without modifying the record.
type Store interface {
	// Create inserts a new notification. A duplicate idempotency key
	// returns ErrDuplicateKey.
	Create(ctx context.Context, n *Notification) error

	GetByID(ctx context.Context, id uuid.UUID) (Notification, error)

	// FindByIdempotencyKey returns ErrNotFound when no record carries key.
	FindByIdempotencyKey(ctx context.Context, key string) (Notification, error)

	// ListByUser returns the user's notifications, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error)

	// UpdateStatus moves the notification to the given status and stamps
	// updated_at.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status) error

	// MarkSent finalizes a successful delivery: status sent, sent_at set,
	// error message cleared.
	MarkSent(ctx context.Context, id uuid.UUID) error

	// MarkRetrying records a failed attempt that will be retried.
	MarkRetrying(ctx context.Context, id uuid.UUID, errorMessage string) error

	// MarkFailed finalizes the notification after its last attempt.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error

	// IncrementRetryCount atomically bumps retry_count and returns the new
	// value.
	IncrementRetryCount(ctx context.Context, id uuid.UUID) (int, error)

	// Delete removes the notification; its delivery logs go with it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// AppendLogParams describes one delivery attempt outcome. The attempt
// number is assigned by the store, not the caller, so the log stays
// gap-free even when the queue re-delivers a job.
type AppendLogParams struct {
	NotificationID   uuid.UUID
	Status           LogStatus
	ErrorMessage     string
	ProviderResponse string
}

// LogStore is the append-only delivery attempt log.
type LogStore interface {
	Append(ctx context.Context, params AppendLogParams) (DeliveryLog, error)

	// ListByNotification returns attempts in ascending attempt order.
	ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]DeliveryLog, error)

	// Latest returns the most recent attempt or ErrLogNotFound.
	Latest(ctx context.Context, notificationID uuid.UUID) (DeliveryLog, error)

	// CountByStatus counts attempts with the given outcome inside the
	// window ending now. A zero window counts everything.
	CountByStatus(ctx context.Context, status LogStatus, window time.Duration) (int, error)

	// SuccessRate returns the percentage of sent attempts over the
	// window (95.0 for 19 sent out of 20), 0 when the window holds no
	// attempts.
	SuccessRate(ctx context.Context, window time.Duration) (float64, error)
}
