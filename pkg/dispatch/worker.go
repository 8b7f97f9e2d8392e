package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
)

// WorkerRepository defines the interface for worker operations.
type WorkerRepository interface {
	// ClaimJob atomically claims the next due job, locking it for
	// lockDuration. Jobs whose lock expired are claimable again without
	// consuming an attempt.
	ClaimJob(ctx context.Context, workerID uuid.UUID, lockDuration time.Duration) (*Job, error)

	// CompleteJob marks a claimed job as completed.
	CompleteJob(ctx context.Context, jobID uuid.UUID) error

	// FailJob records a failed attempt: it increments the attempt count and
	// either reschedules the job for retryAt or, when attempts are
	// exhausted, marks it failed.
	FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string, retryAt time.Time) error
}

// Handler processes one delivery attempt for a claimed job. Returning nil
// completes the job; returning an error spends the attempt.
type Handler func(ctx context.Context, job Job) error

// RateLimiter gates how many attempts the worker starts per unit time.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*ratelimit.Result, error)
}

// rateLimitKey identifies the worker's bucket in a shared limiter store.
const rateLimitKey = "dispatch:attempts"

// Worker drains the queue with a bounded pool of concurrent attempts.
type Worker struct {
	repo     WorkerRepository
	handler  Handler
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopMu   sync.Mutex // Serializes stopping state against WaitGroup adds.

	pullInterval time.Duration
	lockTimeout  time.Duration
	backoff      Backoff
	limiter      RateLimiter
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// WorkerOption is a functional option for configuring a worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	pullInterval  time.Duration
	lockTimeout   time.Duration
	maxConcurrent int
	backoff       Backoff
	limiter       RateLimiter
	logger        *slog.Logger
}

// WithPullInterval sets how often the worker checks for due jobs.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets the claim lock duration, which also bounds a single
// attempt's execution time.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithMaxConcurrentJobs sets the size of the worker pool.
func WithMaxConcurrentJobs(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithBackoff sets the retry delay policy applied to failed attempts.
func WithBackoff(b Backoff) WorkerOption {
	return func(o *workerOptions) {
		if b.Base > 0 {
			o.backoff = b
		}
	}
}

// WithRateLimiter caps how many attempts are started per unit time to
// protect downstream providers.
func WithRateLimiter(rl RateLimiter) WorkerOption {
	return func(o *workerOptions) {
		o.limiter = rl
	}
}

// WithWorkerLogger sets the logger for the worker.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewWorker creates a queue worker that feeds claimed jobs to the handler.
func NewWorker(repo WorkerRepository, handler Handler, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}

	options := &workerOptions{
		pullInterval:  time.Second,
		lockTimeout:   2 * time.Minute,
		maxConcurrent: 5,
		backoff:       DefaultBackoff,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:         repo,
		handler:      handler,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrent),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		backoff:      options.backoff,
		limiter:      options.limiter,
		logger:       options.logger,
	}, nil
}

// Start begins claiming jobs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerAlreadyStarted
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("dispatch worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Int("max_concurrent", cap(w.sem)),
		slog.Duration("pull_interval", w.pullInterval))

	return nil
}

// Stop gracefully shuts down the worker, waiting for in-flight attempts to
// finish. Jobs not claimed yet stay pending; jobs interrupted by process
// death are recovered via lock expiry.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("dispatch worker stopping, draining in-flight attempts",
		slog.String("worker_id", w.workerID.String()))

	w.wg.Wait()

	w.logger.Info("dispatch worker stopped",
		slog.String("worker_id", w.workerID.String()))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// run is the main claim loop.
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.claimAndProcess(); err != nil {
						w.logger.Error("failed to process job",
							slog.String("worker_id", w.workerID.String()),
							slog.String("error", err.Error()))
					}
				}()
			default:
				w.logger.Debug("all worker slots busy, skipping tick",
					slog.String("worker_id", w.workerID.String()))
			}
		}
	}
}

// claimAndProcess claims the next due job and runs one attempt.
func (w *Worker) claimAndProcess() error {
	if w.limiter != nil {
		res, err := w.limiter.Allow(w.ctx, rateLimitKey)
		if err != nil {
			return fmt.Errorf("rate limiter check: %w", err)
		}
		if !res.Allowed() {
			w.logger.Debug("attempt rate limit reached, skipping claim",
				slog.String("worker_id", w.workerID.String()),
				slog.Duration("retry_after", res.RetryAfter()))
			return nil
		}
	}

	job, err := w.repo.ClaimJob(w.ctx, w.workerID, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoJobToClaim) {
			return nil
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if job == nil {
		return nil
	}

	w.logger.Debug("claimed job",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("notification_id", job.NotificationID.String()),
		slog.Int("attempt", job.Attempt()))

	return w.processJob(job)
}

// processJob executes one attempt with panic recovery. A panicking handler
// spends the attempt like any other failure.
func (w *Worker) processJob(job *Job) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("job_id", job.ID.String()),
				slog.Any("panic", r))
			_ = w.handleFailure(job, retErr, time.Since(start))
		}
	}()

	// The attempt runs against a fresh context bounded by the lock timeout,
	// detached from the worker lifecycle so graceful shutdown lets it finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	err := w.handler(ctx, *job)
	duration := time.Since(start)

	if err != nil {
		return w.handleFailure(job, err, duration)
	}

	return w.handleSuccess(job, duration)
}

func (w *Worker) handleFailure(job *Job, execErr error, duration time.Duration) error {
	w.logger.Error("delivery attempt failed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("notification_id", job.NotificationID.String()),
		slog.Int("attempt", job.Attempt()),
		slog.Int("max_attempts", job.MaxAttempts),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	// Recorded against a detached context so a draining attempt can still
	// persist its outcome after Stop cancels the claim loop.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	retryAt := time.Now().Add(w.backoff.Delay(job.Attempt()))
	if err := w.repo.FailJob(ctx, job.ID, execErr.Error(), retryAt); err != nil {
		return fmt.Errorf("failed to record failed attempt for job %s: %w", job.ID, err)
	}

	if job.FinalAttempt() {
		w.logger.Warn("job exhausted all attempts",
			slog.String("worker_id", w.workerID.String()),
			slog.String("job_id", job.ID.String()),
			slog.String("notification_id", job.NotificationID.String()),
			slog.Int("attempts", job.MaxAttempts))
	}

	return nil
}

func (w *Worker) handleSuccess(job *Job, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.repo.CompleteJob(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job %s as completed: %w", job.ID, err)
	}

	w.logger.Info("job completed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("notification_id", job.NotificationID.String()),
		slog.Int("attempt", job.Attempt()),
		slog.Duration("duration", duration))

	return nil
}
