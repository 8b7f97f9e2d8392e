package config

import "errors"

var (
	// ErrNilPointer is returned when Load is called with a nil destination.
	ErrNilPointer = errors.New("config: destination cannot be nil")

	// ErrParsingConfig is returned when environment parsing fails.
	ErrParsingConfig = errors.New("config: failed to parse environment")
)
