package channel

import "errors"

var (
	// ErrUnknownChannel is returned when resolving a name with no
	// registered implementation.
	ErrUnknownChannel = errors.New("channel: unknown channel")

	// ErrInvalidRecipient is returned by ValidateRecipient for malformed
	// addresses.
	ErrInvalidRecipient = errors.New("channel: invalid recipient")

	// ErrInvalidConfig is returned when a channel is constructed with
	// incomplete configuration.
	ErrInvalidConfig = errors.New("channel: invalid configuration")
)
