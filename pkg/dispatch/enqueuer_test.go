package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/dispatch"
)

// MockEnqueuerRepository is a mock implementation of EnqueuerRepository.
type MockEnqueuerRepository struct {
	mock.Mock
}

func (m *MockEnqueuerRepository) CreateJob(ctx context.Context, job *dispatch.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func TestNewEnqueuer(t *testing.T) {
	t.Parallel()

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()

		enq, err := dispatch.NewEnqueuer(nil)
		assert.ErrorIs(t, err, dispatch.ErrRepositoryNil)
		assert.Nil(t, enq)
	})
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("creates pending job with defaults", func(t *testing.T) {
		t.Parallel()

		notificationID := uuid.New()

		repo := new(MockEnqueuerRepository)
		defer repo.AssertExpectations(t)
		repo.On("CreateJob", mock.Anything, mock.MatchedBy(func(job *dispatch.Job) bool {
			return job.NotificationID == notificationID &&
				job.Status == dispatch.JobStatusPending &&
				job.AttemptCount == 0 &&
				job.MaxAttempts == dispatch.DefaultMaxAttempts &&
				!job.ScheduledAt.After(time.Now())
		})).Return(nil).Once()

		enq, err := dispatch.NewEnqueuer(repo)
		require.NoError(t, err)

		jobID, err := enq.Enqueue(ctx, notificationID)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, jobID)
	})

	t.Run("delay postpones first attempt", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		defer repo.AssertExpectations(t)
		repo.On("CreateJob", mock.Anything, mock.MatchedBy(func(job *dispatch.Job) bool {
			return job.ScheduledAt.After(time.Now().Add(30 * time.Second))
		})).Return(nil).Once()

		enq, err := dispatch.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enq.Enqueue(ctx, uuid.New(), dispatch.WithDelay(time.Minute))
		require.NoError(t, err)
	})

	t.Run("invalid max attempts", func(t *testing.T) {
		t.Parallel()

		enq, err := dispatch.NewEnqueuer(new(MockEnqueuerRepository))
		require.NoError(t, err)

		_, err = enq.Enqueue(ctx, uuid.New(), dispatch.WithMaxAttempts(0))
		assert.ErrorIs(t, err, dispatch.ErrInvalidMaxAttempts)

		_, err = enq.Enqueue(ctx, uuid.New(), dispatch.WithMaxAttempts(11))
		assert.ErrorIs(t, err, dispatch.ErrInvalidMaxAttempts)
	})

	t.Run("repository error propagates", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		defer repo.AssertExpectations(t)
		repo.On("CreateJob", mock.Anything, mock.Anything).Return(assert.AnError).Once()

		enq, err := dispatch.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enq.Enqueue(ctx, uuid.New())
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestBackoff_Delay(t *testing.T) {
	t.Parallel()

	b := dispatch.Backoff{Base: 30 * time.Second, Multiplier: 2}

	assert.Equal(t, 30*time.Second, b.Delay(1))
	assert.Equal(t, 60*time.Second, b.Delay(2))
	assert.Equal(t, 120*time.Second, b.Delay(3))

	// Out-of-range attempts clamp to the first delay.
	assert.Equal(t, 30*time.Second, b.Delay(0))
}
