package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/mrz1836/postmark"
)

// emailRegex is a pragmatic format check, not a full RFC 5322 parser.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailConfig holds email channel configuration.
type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL"`
}

// EmailChannel delivers messages over Postmark's transactional email API.
type EmailChannel struct {
	client *postmark.Client
	config EmailConfig
}

// NewEmailChannel creates a Postmark-backed email channel. All tokens are
// required so a misconfigured service fails at startup, not on the first
// send.
func NewEmailChannel(cfg EmailConfig) (*EmailChannel, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" || !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}

	return &EmailChannel{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) ValidateRecipient(recipient string) error {
	if !emailRegex.MatchString(recipient) {
		return fmt.Errorf("%w: %q is not a valid email address", ErrInvalidRecipient, recipient)
	}
	return nil
}

func (c *EmailChannel) Send(ctx context.Context, recipient string, msg Message) Result {
	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:     c.config.SenderEmail,
		To:       recipient,
		Subject:  msg.Subject,
		TextBody: msg.Body,
	})

	raw, _ := json.Marshal(resp)

	if err != nil {
		return Failed(err.Error(), string(raw))
	}
	if resp.ErrorCode > 0 {
		return Failed(fmt.Sprintf("postmark error %d: %s", resp.ErrorCode, resp.Message), string(raw))
	}

	return Succeeded(resp.MessageID, string(raw))
}
