package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all queue repository interfaces for testing and
// local development.
type MemoryStorage struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job

	lockTicker *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
}

// NewMemoryStorage creates a new in-memory storage implementation. A
// background goroutine releases expired locks so jobs claimed by dead
// workers become claimable again.
func NewMemoryStorage() *MemoryStorage {
	ms := &MemoryStorage{
		jobs: make(map[uuid.UUID]*Job),
		done: make(chan struct{}),
	}

	ms.lockTicker = time.NewTicker(time.Second)
	go ms.lockExpirationManager()

	return ms
}

// Close stops the background goroutine.
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.lockTicker.Stop()
	})
	return nil
}

// CreateJob implements EnqueuerRepository.
func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("dispatch: job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return errors.New("dispatch: job already exists")
	}

	// Clone to prevent external modification.
	jobCopy := *job
	ms.jobs[job.ID] = &jobCopy

	return nil
}

// ClaimJob implements WorkerRepository. The earliest due pending job wins;
// processing jobs whose lock expired are claimable too, preserving
// at-least-once delivery without consuming an attempt.
func (ms *MemoryStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, lockDuration time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Job

	for _, job := range ms.jobs {
		claimable := (job.Status == JobStatusPending && !job.ScheduledAt.After(now)) ||
			(job.Status == JobStatusProcessing && job.LockedUntil != nil && job.LockedUntil.Before(now))
		if !claimable {
			continue
		}

		if best == nil || job.ScheduledAt.Before(best.ScheduledAt) {
			best = job
		}
	}

	if best == nil {
		return nil, ErrNoJobToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = JobStatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	jobCopy := *best
	return &jobCopy, nil
}

// CompleteJob implements WorkerRepository.
func (ms *MemoryStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	if job.Status != JobStatusProcessing {
		return ErrJobNotProcessing
	}

	job.Status = JobStatusCompleted
	job.LockedUntil = nil
	job.LockedBy = nil

	return nil
}

// FailJob implements WorkerRepository.
func (ms *MemoryStorage) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string, retryAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	if job.Status != JobStatusProcessing {
		return ErrJobNotProcessing
	}

	job.AttemptCount++
	job.LastError = &errorMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	if job.AttemptCount >= job.MaxAttempts {
		job.Status = JobStatusFailed
	} else {
		job.Status = JobStatusPending
		job.ScheduledAt = retryAt
	}

	return nil
}

// Stats implements StatsRepository.
func (ms *MemoryStorage) Stats(ctx context.Context) (Stats, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var stats Stats

	for _, job := range ms.jobs {
		switch job.Status {
		case JobStatusPending:
			if job.ScheduledAt.After(now) {
				stats.Delayed++
			} else {
				stats.Waiting++
			}
		case JobStatusProcessing:
			stats.Active++
		case JobStatusCompleted:
			stats.Completed++
		case JobStatusFailed:
			stats.Failed++
		}
	}

	return stats, nil
}

// GetJob returns a copy of the job, for tests and diagnostics.
func (ms *MemoryStorage) GetJob(jobID uuid.UUID) (*Job, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return nil, false
	}

	jobCopy := *job
	return &jobCopy, true
}

func (ms *MemoryStorage) lockExpirationManager() {
	for {
		select {
		case <-ms.lockTicker.C:
			ms.expireLocks()
		case <-ms.done:
			return
		}
	}
}

// expireLocks releases jobs whose lock has passed back to pending. The
// attempt count is untouched: a crashed worker's claim is redelivery, not a
// spent attempt.
func (ms *MemoryStorage) expireLocks() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for _, job := range ms.jobs {
		if job.Status == JobStatusProcessing && job.LockedUntil != nil && job.LockedUntil.Before(now) {
			job.Status = JobStatusPending
			job.LockedUntil = nil
			job.LockedBy = nil
		}
	}
}
