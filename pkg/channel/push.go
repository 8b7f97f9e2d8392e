package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// minDeviceTokenLength filters out obviously truncated device tokens before
// a provider round trip.
const minDeviceTokenLength = 32

// PushConfig holds push gateway configuration.
type PushConfig struct {
	GatewayURL  string        `env:"PUSH_GATEWAY_URL"`
	APIKey      string        `env:"PUSH_API_KEY"`
	HTTPTimeout time.Duration `env:"PUSH_HTTP_TIMEOUT" envDefault:"15s"`
}

// PushChannel delivers messages through an HTTP push notification gateway.
type PushChannel struct {
	config PushConfig
	client *http.Client
}

// NewPushChannel creates a push channel for the configured gateway.
func NewPushChannel(cfg PushConfig) (*PushChannel, error) {
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("%w: GatewayURL is required", ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: APIKey is required", ErrInvalidConfig)
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}

	return &PushChannel{
		config: cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) ValidateRecipient(recipient string) error {
	if len(recipient) < minDeviceTokenLength {
		return fmt.Errorf("%w: device token too short", ErrInvalidRecipient)
	}
	return nil
}

type pushRequest struct {
	DeviceToken string            `json:"device_token"`
	Title       string            `json:"title,omitempty"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

type pushResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

func (c *PushChannel) Send(ctx context.Context, recipient string, msg Message) Result {
	payload, err := json.Marshal(pushRequest{
		DeviceToken: recipient,
		Title:       msg.Subject,
		Body:        msg.Body,
		Data:        msg.Data,
	})
	if err != nil {
		return Failed(fmt.Sprintf("failed to encode push request: %v", err), "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return Failed(fmt.Sprintf("failed to build push request: %v", err), "")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return Failed(fmt.Sprintf("push gateway request failed: %v", err), "")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Failed(fmt.Sprintf("push gateway returned status %d", resp.StatusCode), string(body))
	}

	var parsed pushResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Failed(fmt.Sprintf("failed to decode push gateway response: %v", err), string(body))
	}
	if parsed.Error != "" {
		return Failed(parsed.Error, string(body))
	}

	return Succeeded(parsed.MessageID, string(body))
}
