package channel

import (
	"context"
	"fmt"
)

// Message is the rendered content handed to a channel for delivery.
type Message struct {
	Subject string            // Empty for mediums without a subject line.
	Body    string            // Rendered template body.
	Data    map[string]string // Raw payload, for mediums that carry structured data.
}

// Result is the structured outcome of one send. Err is empty on success;
// RawResponse preserves whatever the provider returned for diagnostics.
type Result struct {
	Success     bool   `json:"success"`
	MessageID   string `json:"message_id,omitempty"`
	Err         string `json:"error,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
}

// Channel is one delivery medium.
type Channel interface {
	// Name identifies the medium ("email", "sms", "push").
	Name() string

	// ValidateRecipient is a format-only sanity check of the recipient
	// address. It does not reach the provider.
	ValidateRecipient(recipient string) error

	// Send delivers the message. Provider failures are reported through the
	// Result, never as an error value or panic.
	Send(ctx context.Context, recipient string, msg Message) Result
}

// Succeeded builds a successful Result.
func Succeeded(messageID, rawResponse string) Result {
	return Result{Success: true, MessageID: messageID, RawResponse: rawResponse}
}

// Failed builds a failed Result.
func Failed(errMsg, rawResponse string) Result {
	return Result{Success: false, Err: errMsg, RawResponse: rawResponse}
}

// Registry maps channel names to implementations. It is built once at
// startup and passed into the delivery pipeline.
type Registry struct {
	channels map[string]Channel
}

// NewRegistry builds a registry from the given channels. Registering two
// channels with the same name panics: that is a wiring bug, not a runtime
// condition.
func NewRegistry(channels ...Channel) *Registry {
	r := &Registry{channels: make(map[string]Channel, len(channels))}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		if _, exists := r.channels[ch.Name()]; exists {
			panic(fmt.Sprintf("channel: duplicate registration for %q", ch.Name()))
		}
		r.channels[ch.Name()] = ch
	}
	return r
}

// Get resolves a channel by name.
func (r *Registry) Get(name string) (Channel, error) {
	ch, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return ch, nil
}

// Names returns the registered channel names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}
