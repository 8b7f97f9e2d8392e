// Package idempotency deduplicates logically identical notification
// requests.
//
// A request is identified by a deterministic SHA-256 key derived from the
// user id, template id, and a canonical serialization of the payload data.
// The Guard resolves a key through two layers: a fast cache with a bounded
// TTL, then the authoritative store lookup backed by the unique constraint
// on the notifications table. Correctness derives from the store constraint;
// the cache only short-circuits the common case.
//
// The cache entry for a new notification is written only after the record is
// durably persisted and enqueued. A crash in between costs at most one
// redundant store lookup on the next duplicate, never a cached id that was
// not enqueued.
package idempotency
