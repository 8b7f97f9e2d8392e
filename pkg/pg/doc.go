// Package pg manages the PostgreSQL connection pool used by the service.
//
// It wraps pgxpool with retrying connect logic, applies goose schema
// migrations through the pool, and exposes a healthcheck closure for the
// health endpoint.
package pg
