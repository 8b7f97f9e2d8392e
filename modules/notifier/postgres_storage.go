package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifykit/pkg/pg"
)

// PostgresStorage implements Store and LogStore on the notifications and
// delivery_logs tables. Status updates carry the transition guard in the
// WHERE clause, so the lifecycle holds under concurrent workers without
// application-level locking.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a Postgres-backed notification storage.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const notificationColumns = `
	id, user_id, template_id, channel, recipient, data, status,
	idempotency_key, retry_count, error_message, created_at, updated_at, sent_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var (
		n        Notification
		errMsg   *string
		dataJSON map[string]string
	)
	err := row.Scan(
		&n.ID, &n.UserID, &n.TemplateID, &n.Channel, &n.Recipient, &dataJSON,
		&n.Status, &n.IdempotencyKey, &n.RetryCount, &errMsg,
		&n.CreatedAt, &n.UpdatedAt, &n.SentAt,
	)
	if err != nil {
		return Notification{}, err
	}
	n.Data = dataJSON
	if errMsg != nil {
		n.ErrorMessage = *errMsg
	}
	return n, nil
}

func (ps *PostgresStorage) Create(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = StatusPending
	}

	query := `
		INSERT INTO notifications (
			id, user_id, template_id, channel, recipient, data, status, idempotency_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at;
	`

	err := ps.pool.QueryRow(ctx, query,
		n.ID, n.UserID, n.TemplateID, n.Channel, n.Recipient, n.Data, n.Status, n.IdempotencyKey,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (ps *PostgresStorage) GetByID(ctx context.Context, id uuid.UUID) (Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1;`

	n, err := scanNotification(ps.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

func (ps *PostgresStorage) FindByIdempotencyKey(ctx context.Context, key string) (Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE idempotency_key = $1;`

	n, err := scanNotification(ps.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, fmt.Errorf("failed to find notification by idempotency key: %w", err)
	}
	return n, nil
}

func (ps *PostgresStorage) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3;
	`

	rows, err := ps.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var list []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (ps *PostgresStorage) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) error {
	query := `
		UPDATE notifications
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3);
	`
	return ps.guardedUpdate(ctx, id, to, query)
}

func (ps *PostgresStorage) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET status = $2, sent_at = now(), error_message = NULL, updated_at = now()
		WHERE id = $1 AND status = ANY($3);
	`
	return ps.guardedUpdate(ctx, id, StatusSent, query)
}

func (ps *PostgresStorage) MarkRetrying(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE notifications
		SET status = $2, error_message = $4, updated_at = now()
		WHERE id = $1 AND status = ANY($3);
	`
	return ps.guardedUpdate(ctx, id, StatusRetrying, query, errorMessage)
}

func (ps *PostgresStorage) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE notifications
		SET status = $2, error_message = $4, updated_at = now()
		WHERE id = $1 AND status = ANY($3);
	`
	return ps.guardedUpdate(ctx, id, StatusFailed, query, errorMessage)
}

// guardedUpdate runs a status update whose WHERE clause restricts the
// current status to the legal sources of the target. Zero affected rows is
// disambiguated with a follow-up read.
func (ps *PostgresStorage) guardedUpdate(ctx context.Context, id uuid.UUID, to Status, query string, extraArgs ...any) error {
	sources := TransitionSources(to)
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	args := append([]any{id, to, from}, extraArgs...)
	tag, err := ps.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current Status
	err = ps.pool.QueryRow(ctx, `SELECT status FROM notifications WHERE id = $1;`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read notification status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
}

func (ps *PostgresStorage) IncrementRetryCount(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE notifications
		SET retry_count = retry_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING retry_count;
	`

	var count int
	err := ps.pool.QueryRow(ctx, query, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment retry count: %w", err)
	}
	return count, nil
}

func (ps *PostgresStorage) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Append inserts a delivery log row. The attempt number is computed inside
// the INSERT from the current maximum for the notification, so concurrent
// appends cannot leave gaps or duplicates.
func (ps *PostgresStorage) Append(ctx context.Context, params AppendLogParams) (DeliveryLog, error) {
	query := `
		INSERT INTO delivery_logs (
			id, notification_id, attempt, status, error_message, provider_response
		)
		SELECT $1, $2,
		       COALESCE((SELECT MAX(attempt) FROM delivery_logs WHERE notification_id = $2), 0) + 1,
		       $3, NULLIF($4, ''), NULLIF($5, '')
		RETURNING id, notification_id, attempt, status,
		          COALESCE(error_message, ''), COALESCE(provider_response, ''), created_at;
	`

	var entry DeliveryLog
	err := ps.pool.QueryRow(ctx, query,
		uuid.New(), params.NotificationID, params.Status, params.ErrorMessage, params.ProviderResponse,
	).Scan(
		&entry.ID, &entry.NotificationID, &entry.Attempt, &entry.Status,
		&entry.ErrorMessage, &entry.ProviderResponse, &entry.CreatedAt,
	)
	if err != nil {
		if pg.IsForeignKeyViolation(err) {
			return DeliveryLog{}, ErrNotFound
		}
		return DeliveryLog{}, fmt.Errorf("failed to append delivery log: %w", err)
	}
	return entry, nil
}

func (ps *PostgresStorage) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]DeliveryLog, error) {
	query := `
		SELECT id, notification_id, attempt, status,
		       COALESCE(error_message, ''), COALESCE(provider_response, ''), created_at
		FROM delivery_logs
		WHERE notification_id = $1
		ORDER BY attempt ASC;
	`

	rows, err := ps.pool.Query(ctx, query, notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	defer rows.Close()

	var list []DeliveryLog
	for rows.Next() {
		var entry DeliveryLog
		if err := rows.Scan(
			&entry.ID, &entry.NotificationID, &entry.Attempt, &entry.Status,
			&entry.ErrorMessage, &entry.ProviderResponse, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delivery log: %w", err)
		}
		list = append(list, entry)
	}
	return list, rows.Err()
}

func (ps *PostgresStorage) Latest(ctx context.Context, notificationID uuid.UUID) (DeliveryLog, error) {
	query := `
		SELECT id, notification_id, attempt, status,
		       COALESCE(error_message, ''), COALESCE(provider_response, ''), created_at
		FROM delivery_logs
		WHERE notification_id = $1
		ORDER BY attempt DESC
		LIMIT 1;
	`

	var entry DeliveryLog
	err := ps.pool.QueryRow(ctx, query, notificationID).Scan(
		&entry.ID, &entry.NotificationID, &entry.Attempt, &entry.Status,
		&entry.ErrorMessage, &entry.ProviderResponse, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeliveryLog{}, ErrLogNotFound
		}
		return DeliveryLog{}, fmt.Errorf("failed to get latest delivery log: %w", err)
	}
	return entry, nil
}

func (ps *PostgresStorage) CountByStatus(ctx context.Context, status LogStatus, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM delivery_logs
		WHERE status = $1 AND ($2::interval IS NULL OR created_at >= now() - $2::interval);
	`

	var count int
	if err := ps.pool.QueryRow(ctx, query, status, windowInterval(window)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count delivery logs: %w", err)
	}
	return count, nil
}

func (ps *PostgresStorage) SuccessRate(ctx context.Context, window time.Duration) (float64, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'sent'), COUNT(*)
		FROM delivery_logs
		WHERE $1::interval IS NULL OR created_at >= now() - $1::interval;
	`

	var sent, total int
	if err := ps.pool.QueryRow(ctx, query, windowInterval(window)).Scan(&sent, &total); err != nil {
		return 0, fmt.Errorf("failed to compute success rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(sent) / float64(total) * 100, nil
}

// windowInterval maps a zero window to NULL, meaning no time bound.
func windowInterval(window time.Duration) *time.Duration {
	if window <= 0 {
		return nil
	}
	return &window
}
