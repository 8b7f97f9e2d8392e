package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the interface for job creation.
type EnqueuerRepository interface {
	CreateJob(ctx context.Context, job *Job) error
}

// Enqueuer records delivery jobs.
type Enqueuer struct {
	repo               EnqueuerRepository
	defaultMaxAttempts int
}

// EnqueuerOption is a functional option for configuring an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithDefaultMaxAttempts sets the default attempt budget for enqueued jobs.
func WithDefaultMaxAttempts(n int) EnqueuerOption {
	return func(e *Enqueuer) {
		if n >= 1 && n <= 10 {
			e.defaultMaxAttempts = n
		}
	}
}

// NewEnqueuer creates a new Enqueuer.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	e := &Enqueuer{
		repo:               repo,
		defaultMaxAttempts: DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// EnqueueOption is a functional option for the Enqueue method.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	maxAttempts int
	delay       time.Duration
}

// WithMaxAttempts overrides the attempt budget for a single job (1-10).
// Capped to prevent unbounded retry loops on persistent failures.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		o.maxAttempts = n
	}
}

// WithDelay postpones the first attempt.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// Enqueue records a delivery job for the notification and returns the job id.
func (e *Enqueuer) Enqueue(ctx context.Context, notificationID uuid.UUID, opts ...EnqueueOption) (uuid.UUID, error) {
	options := &enqueueOptions{maxAttempts: e.defaultMaxAttempts}
	for _, opt := range opts {
		opt(options)
	}

	if options.maxAttempts < 1 || options.maxAttempts > 10 {
		return uuid.Nil, ErrInvalidMaxAttempts
	}

	now := time.Now()
	job := &Job{
		ID:             uuid.New(),
		NotificationID: notificationID,
		Status:         JobStatusPending,
		AttemptCount:   0,
		MaxAttempts:    options.maxAttempts,
		ScheduledAt:    now.Add(options.delay),
		CreatedAt:      now,
	}

	if err := e.repo.CreateJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job for notification %s: %w", notificationID, err)
	}

	return job.ID, nil
}
