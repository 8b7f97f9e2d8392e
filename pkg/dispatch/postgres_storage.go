package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage implements the queue repository interfaces on the
// dispatch_jobs table. Claiming relies on FOR UPDATE SKIP LOCKED so
// concurrent workers never take the same job, and single-statement updates
// keep the queue correct without application-level locking.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a Postgres-backed queue storage.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

// CreateJob implements EnqueuerRepository.
func (ps *PostgresStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("dispatch: job cannot be nil")
	}

	query := `
		INSERT INTO dispatch_jobs (
			id, notification_id, status, attempt_count, max_attempts, scheduled_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7);
	`

	_, err := ps.pool.Exec(ctx, query,
		job.ID, job.NotificationID, job.Status, job.AttemptCount, job.MaxAttempts, job.ScheduledAt, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// ClaimJob implements WorkerRepository. Expired locks are reclaimed in the
// same statement, so jobs held by dead workers flow back into rotation
// without a separate janitor.
func (ps *PostgresStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, lockDuration time.Duration) (*Job, error) {
	query := `
		UPDATE dispatch_jobs
		SET status = 'processing', locked_until = now() + $2, locked_by = $1
		WHERE id = (
			SELECT id
			FROM dispatch_jobs
			WHERE (status = 'pending' AND scheduled_at <= now())
			   OR (status = 'processing' AND locked_until < now())
			ORDER BY scheduled_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, notification_id, status, attempt_count, max_attempts,
		          scheduled_at, locked_until, locked_by, last_error, created_at;
	`

	var job Job
	err := ps.pool.QueryRow(ctx, query, workerID, lockDuration).Scan(
		&job.ID, &job.NotificationID, &job.Status, &job.AttemptCount, &job.MaxAttempts,
		&job.ScheduledAt, &job.LockedUntil, &job.LockedBy, &job.LastError, &job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoJobToClaim
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return &job, nil
}

// CompleteJob implements WorkerRepository.
func (ps *PostgresStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE dispatch_jobs
		SET status = 'completed', locked_until = NULL, locked_by = NULL
		WHERE id = $1 AND status = 'processing';
	`

	tag, err := ps.pool.Exec(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotProcessing
	}

	return nil
}

// FailJob implements WorkerRepository. The attempt increment and the
// retry-or-fail decision happen in one statement to stay atomic under
// concurrent workers.
func (ps *PostgresStorage) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string, retryAt time.Time) error {
	query := `
		UPDATE dispatch_jobs
		SET attempt_count = attempt_count + 1,
		    last_error = $2,
		    locked_until = NULL,
		    locked_by = NULL,
		    status = CASE WHEN attempt_count + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
		    scheduled_at = CASE WHEN attempt_count + 1 >= max_attempts THEN scheduled_at ELSE $3 END
		WHERE id = $1 AND status = 'processing';
	`

	tag, err := ps.pool.Exec(ctx, query, jobID, errorMsg, retryAt)
	if err != nil {
		return fmt.Errorf("failed to record failed attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotProcessing
	}

	return nil
}

// Stats implements StatsRepository.
func (ps *PostgresStorage) Stats(ctx context.Context) (Stats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending' AND scheduled_at <= now()),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'pending' AND scheduled_at > now())
		FROM dispatch_jobs;
	`

	var stats Stats
	err := ps.pool.QueryRow(ctx, query).Scan(
		&stats.Waiting, &stats.Active, &stats.Completed, &stats.Failed, &stats.Delayed,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load queue stats: %w", err)
	}

	return stats, nil
}
