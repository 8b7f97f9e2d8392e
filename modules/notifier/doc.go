// Package notifier is the notification domain core: the notification model
// and its status machine, durable storage, the accept path (idempotent
// create + enqueue), the delivery processor that runs on the dispatch
// worker, the append-only delivery log, and the HTTP surface.
//
// A notification moves through a fixed lifecycle:
//
//	pending -> queued -> processing -> sent
//	                                -> retrying -> processing
//	                                -> failed   -> retrying (manual retry)
//
// sent is terminal. Every transition goes through the storage layer, which
// rejects moves the lifecycle does not allow, so concurrent workers cannot
// drive a record into an inconsistent state.
//
// Delivery attempts are recorded in an append-only log, one row per
// attempt, numbered from 1 with no gaps. The log is the audit trail for
// the success-rate and per-notification history queries.
package notifier
