// Package cache provides a small thread-safe in-process LRU cache with
// optional per-entry expiration. It is used to keep hot read-mostly data,
// such as rendered-from templates, close to the worker without another
// network round trip.
package cache
