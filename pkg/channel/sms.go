package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// e164Regex matches international phone numbers in E.164 form.
var e164Regex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// SMSConfig holds SMS gateway configuration.
type SMSConfig struct {
	GatewayURL  string        `env:"SMS_GATEWAY_URL"`
	APIKey      string        `env:"SMS_API_KEY"`
	Sender      string        `env:"SMS_SENDER"`
	HTTPTimeout time.Duration `env:"SMS_HTTP_TIMEOUT" envDefault:"15s"`
}

// SMSChannel delivers messages through an HTTP SMS gateway.
type SMSChannel struct {
	config SMSConfig
	client *http.Client
}

// NewSMSChannel creates an SMS channel for the configured gateway.
func NewSMSChannel(cfg SMSConfig) (*SMSChannel, error) {
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("%w: GatewayURL is required", ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: APIKey is required", ErrInvalidConfig)
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}

	return &SMSChannel{
		config: cfg,
		// The client timeout is a hard ceiling in case the caller context
		// is unbounded.
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) ValidateRecipient(recipient string) error {
	if !e164Regex.MatchString(recipient) {
		return fmt.Errorf("%w: %q is not an E.164 phone number", ErrInvalidRecipient, recipient)
	}
	return nil
}

type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

type smsResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

func (c *SMSChannel) Send(ctx context.Context, recipient string, msg Message) Result {
	payload, err := json.Marshal(smsRequest{
		To:   recipient,
		From: c.config.Sender,
		Body: msg.Body,
	})
	if err != nil {
		return Failed(fmt.Sprintf("failed to encode sms request: %v", err), "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return Failed(fmt.Sprintf("failed to build sms request: %v", err), "")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return Failed(fmt.Sprintf("sms gateway request failed: %v", err), "")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Failed(fmt.Sprintf("sms gateway returned status %d", resp.StatusCode), string(body))
	}

	var parsed smsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Failed(fmt.Sprintf("failed to decode sms gateway response: %v", err), string(body))
	}
	if parsed.Error != "" {
		return Failed(parsed.Error, string(body))
	}

	return Succeeded(parsed.MessageID, string(body))
}
