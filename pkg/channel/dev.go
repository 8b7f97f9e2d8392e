package channel

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// DevChannel logs messages instead of delivering them. It stands in for any
// medium in local development where no provider credentials exist.
type DevChannel struct {
	name   string
	logger *slog.Logger
}

// NewDevChannel creates a logging channel registered under the given name.
func NewDevChannel(name string, logger *slog.Logger) *DevChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevChannel{name: name, logger: logger}
}

func (c *DevChannel) Name() string { return c.name }

// ValidateRecipient accepts any non-empty recipient.
func (c *DevChannel) ValidateRecipient(recipient string) error {
	if recipient == "" {
		return ErrInvalidRecipient
	}
	return nil
}

func (c *DevChannel) Send(_ context.Context, recipient string, msg Message) Result {
	messageID := "dev-" + uuid.NewString()
	c.logger.Info("dev channel send",
		slog.String("channel", c.name),
		slog.String("recipient", recipient),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
		slog.String("message_id", messageID),
	)
	return Succeeded(messageID, "")
}
