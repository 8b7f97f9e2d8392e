package pg

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToParseDBConfig    = errors.New("pg: failed to parse connection config")
	ErrFailedToOpenDBConnection = errors.New("pg: failed to open database connection")
	ErrFailedToApplyMigrations  = errors.New("pg: failed to apply migrations")
	ErrMigrationPathNotProvided = errors.New("pg: migrations path not provided")
	ErrMigrationsDirNotFound    = errors.New("pg: migrations directory not found")
	ErrHealthcheckFailed        = errors.New("pg: healthcheck failed")
)

// PostgreSQL constraint violation error codes.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
)

// IsUniqueViolation reports whether err was caused by a unique constraint
// violation. Callers use it to detect idempotency-key insert races.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// IsForeignKeyViolation reports whether err was caused by a foreign key
// constraint violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode
}
