// Package dispatch provides the durable, retrying job queue that drives
// notification delivery.
//
// The package is organised around two components:
//
//   - Enqueuer — records a delivery job for a notification id
//   - Worker   — claims pending jobs and invokes the delivery handler
//
// Components interact only through small repository interfaces, keeping the
// queue logic decoupled from persistence. PostgresStorage backs the queue in
// production; MemoryStorage serves tests and local development.
//
// # Delivery semantics
//
// The queue is at-least-once: a job claimed by a worker that dies is
// released back to pending once its lock expires and will be delivered
// again. Consumers must therefore be idempotent; the delivery pipeline's
// sent short-circuit makes redelivery safe.
//
// A job carries only the notification id. Failed attempts are rescheduled
// with exponential backoff until MaxAttempts is exhausted, at which point
// the job is marked failed and never claimed again. The failed notification
// record itself is the durable failure record; there is no separate dead
// letter store.
//
// # Retry policy
//
// The backoff configured on the Worker is the single authoritative policy:
// the worker computes the retry time for each failed attempt and passes it
// to the repository, so storage backends never invent their own delays.
package dispatch
