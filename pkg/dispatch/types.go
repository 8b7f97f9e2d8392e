package dispatch

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a job in the queue.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DefaultMaxAttempts is the number of delivery attempts a job gets unless
// configured otherwise.
const DefaultMaxAttempts = 3

// Job represents one notification delivery job. The payload is only the
// notification id; the notification store stays authoritative for
// everything else.
type Job struct {
	ID             uuid.UUID  `json:"id"`
	NotificationID uuid.UUID  `json:"notification_id"`
	Status         JobStatus  `json:"status"`
	AttemptCount   int        `json:"attempt_count"`
	MaxAttempts    int        `json:"max_attempts"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	LockedBy       *uuid.UUID `json:"locked_by,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Attempt returns the 1-based number of the attempt a claimed job
// represents. AttemptCount only counts finished failed attempts.
func (j Job) Attempt() int {
	return j.AttemptCount + 1
}

// FinalAttempt reports whether the current attempt is the job's last one.
func (j Job) FinalAttempt() bool {
	return j.Attempt() >= j.MaxAttempts
}

// Backoff defines the exponential retry delay policy: attempt n waits
// Base × Multiplier^(n−1) before the next attempt.
type Backoff struct {
	Base       time.Duration
	Multiplier float64
}

// DefaultBackoff waits 30s, 60s, 120s... between attempts.
var DefaultBackoff = Backoff{Base: 30 * time.Second, Multiplier: 2}

// Delay returns the wait after the given 1-based attempt failed.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(base) * math.Pow(mult, float64(attempt-1)))
}

// Stats reports queue depth by job state for the monitoring surface.
type Stats struct {
	Waiting   int `json:"waiting"`   // pending, due now
	Active    int `json:"active"`    // claimed by a worker
	Completed int `json:"completed"` // finished successfully
	Failed    int `json:"failed"`    // exhausted all attempts
	Delayed   int `json:"delayed"`   // pending, scheduled in the future
}
