package dispatch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/dispatch"
	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopHandler(ctx context.Context, job dispatch.Job) error { return nil }

func newStorage(t *testing.T) *dispatch.MemoryStorage {
	t.Helper()

	storage := dispatch.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func enqueue(t *testing.T, storage *dispatch.MemoryStorage, notificationID uuid.UUID, opts ...dispatch.EnqueueOption) uuid.UUID {
	t.Helper()

	enq, err := dispatch.NewEnqueuer(storage)
	require.NoError(t, err)

	jobID, err := enq.Enqueue(context.Background(), notificationID, opts...)
	require.NoError(t, err)
	return jobID
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()

		w, err := dispatch.NewWorker(nil, noopHandler)
		assert.ErrorIs(t, err, dispatch.ErrRepositoryNil)
		assert.Nil(t, w)
	})

	t.Run("nil handler", func(t *testing.T) {
		t.Parallel()

		w, err := dispatch.NewWorker(newStorage(t), nil)
		assert.ErrorIs(t, err, dispatch.ErrHandlerNil)
		assert.Nil(t, w)
	})
}

func TestWorker_ProcessesJob(t *testing.T) {
	t.Parallel()

	storage := newStorage(t)
	notificationID := uuid.New()
	jobID := enqueue(t, storage, notificationID)

	var processed atomic.Int32
	var gotAttempt atomic.Int32

	w, err := dispatch.NewWorker(storage,
		func(ctx context.Context, job dispatch.Job) error {
			processed.Add(1)
			gotAttempt.Store(int32(job.Attempt()))
			assert.Equal(t, notificationID, job.NotificationID)
			return nil
		},
		dispatch.WithPullInterval(10*time.Millisecond),
		dispatch.WithWorkerLogger(discardLogger()),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	waitFor(t, 2*time.Second, func() bool { return processed.Load() == 1 })
	assert.Equal(t, int32(1), gotAttempt.Load())

	waitFor(t, time.Second, func() bool {
		job, ok := storage.GetJob(jobID)
		return ok && job.Status == dispatch.JobStatusCompleted
	})
}

func TestWorker_RetriesWithBackoff(t *testing.T) {
	t.Parallel()

	storage := newStorage(t)
	jobID := enqueue(t, storage, uuid.New(), dispatch.WithMaxAttempts(3))

	var attempts atomic.Int32

	w, err := dispatch.NewWorker(storage,
		func(ctx context.Context, job dispatch.Job) error {
			n := attempts.Add(1)
			if n < 3 {
				return errors.New("provider unavailable")
			}
			return nil
		},
		dispatch.WithPullInterval(10*time.Millisecond),
		dispatch.WithBackoff(dispatch.Backoff{Base: 20 * time.Millisecond, Multiplier: 1}),
		dispatch.WithWorkerLogger(discardLogger()),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	waitFor(t, 5*time.Second, func() bool {
		job, ok := storage.GetJob(jobID)
		return ok && job.Status == dispatch.JobStatusCompleted
	})

	assert.Equal(t, int32(3), attempts.Load())

	job, ok := storage.GetJob(jobID)
	require.True(t, ok)
	assert.Equal(t, 2, job.AttemptCount)
}

func TestWorker_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	storage := newStorage(t)
	jobID := enqueue(t, storage, uuid.New(), dispatch.WithMaxAttempts(2))

	var attempts atomic.Int32

	w, err := dispatch.NewWorker(storage,
		func(ctx context.Context, job dispatch.Job) error {
			attempts.Add(1)
			return errors.New("permanent failure")
		},
		dispatch.WithPullInterval(10*time.Millisecond),
		dispatch.WithBackoff(dispatch.Backoff{Base: 20 * time.Millisecond, Multiplier: 1}),
		dispatch.WithWorkerLogger(discardLogger()),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	waitFor(t, 5*time.Second, func() bool {
		job, ok := storage.GetJob(jobID)
		return ok && job.Status == dispatch.JobStatusFailed
	})

	assert.Equal(t, int32(2), attempts.Load())

	job, ok := storage.GetJob(jobID)
	require.True(t, ok)
	assert.Equal(t, 2, job.AttemptCount)
	require.NotNil(t, job.LastError)
	assert.Equal(t, "permanent failure", *job.LastError)

	// No further attempts happen for an exhausted job.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestWorker_PanicSpendsAttempt(t *testing.T) {
	t.Parallel()

	storage := newStorage(t)
	jobID := enqueue(t, storage, uuid.New(), dispatch.WithMaxAttempts(1))

	w, err := dispatch.NewWorker(storage,
		func(ctx context.Context, job dispatch.Job) error {
			panic("boom")
		},
		dispatch.WithPullInterval(10*time.Millisecond),
		dispatch.WithWorkerLogger(discardLogger()),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	waitFor(t, 2*time.Second, func() bool {
		job, ok := storage.GetJob(jobID)
		return ok && job.Status == dispatch.JobStatusFailed
	})

	job, _ := storage.GetJob(jobID)
	require.NotNil(t, job.LastError)
	assert.Contains(t, *job.LastError, "panic in handler")
}

func TestWorker_RateLimiterGatesClaims(t *testing.T) {
	t.Parallel()

	storage := newStorage(t)
	enqueue(t, storage, uuid.New())
	enqueue(t, storage, uuid.New())

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	defer store.Close()
	limiter, err := ratelimit.NewBucket(store, ratelimit.Config{
		Capacity:       1,
		RefillRate:     1,
		RefillInterval: time.Hour,
	})
	require.NoError(t, err)

	var processed atomic.Int32

	w, err := dispatch.NewWorker(storage,
		func(ctx context.Context, job dispatch.Job) error {
			processed.Add(1)
			return nil
		},
		dispatch.WithPullInterval(10*time.Millisecond),
		dispatch.WithRateLimiter(limiter),
		dispatch.WithWorkerLogger(discardLogger()),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	waitFor(t, 2*time.Second, func() bool { return processed.Load() == 1 })

	// The second job stays queued: the bucket is drained for an hour.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), processed.Load())
}

func TestWorker_StartStop(t *testing.T) {
	t.Parallel()

	t.Run("double start", func(t *testing.T) {
		t.Parallel()

		w, err := dispatch.NewWorker(newStorage(t), noopHandler,
			dispatch.WithWorkerLogger(discardLogger()))
		require.NoError(t, err)

		require.NoError(t, w.Start(context.Background()))
		defer func() { _ = w.Stop() }()

		assert.ErrorIs(t, w.Start(context.Background()), dispatch.ErrWorkerAlreadyStarted)
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		w, err := dispatch.NewWorker(newStorage(t), noopHandler,
			dispatch.WithWorkerLogger(discardLogger()))
		require.NoError(t, err)

		assert.ErrorIs(t, w.Stop(), dispatch.ErrWorkerNotStarted)
	})

	t.Run("stop drains in-flight attempt", func(t *testing.T) {
		t.Parallel()

		storage := newStorage(t)
		jobID := enqueue(t, storage, uuid.New())

		started := make(chan struct{})
		release := make(chan struct{})

		w, err := dispatch.NewWorker(storage,
			func(ctx context.Context, job dispatch.Job) error {
				close(started)
				<-release
				return nil
			},
			dispatch.WithPullInterval(10*time.Millisecond),
			dispatch.WithWorkerLogger(discardLogger()),
		)
		require.NoError(t, err)

		require.NoError(t, w.Start(context.Background()))
		<-started

		stopped := make(chan struct{})
		go func() {
			_ = w.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
			t.Fatal("Stop returned while an attempt was in flight")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		<-stopped

		job, ok := storage.GetJob(jobID)
		require.True(t, ok)
		assert.Equal(t, dispatch.JobStatusCompleted, job.Status)
	})
}
