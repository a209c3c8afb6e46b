// Package webhook provides the achievement event sink client. Deliveries
// are best effort: failures are logged by callers and never block an award.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/strumly/practice-engine/internal/config"
	"github.com/strumly/practice-engine/pkg/logger"
)

// Client posts achievement events to the configured webhook URL.
type Client struct {
	url        string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new webhook client.
func NewClient(cfg *config.WebhookConfig, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:     cfg.URL,
		enabled: cfg.Enabled,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Event is the webhook payload.
type Event struct {
	UserID   uint   `json:"user_id"`
	EventKey string `json:"event_key"`
	Title    string `json:"title"`
	Value    int    `json:"value"`
}

// Notify delivers one achievement event. A disabled client is a silent
// no-op.
func (c *Client) Notify(ctx context.Context, userID uint, eventKey, title string, value int) error {
	if !c.enabled {
		c.log.Debug().Msg("Achievement webhook is disabled, skipping event")
		return nil
	}

	payload, err := json.Marshal(Event{
		UserID:   userID,
		EventKey: eventKey,
		Title:    title,
		Value:    value,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Uint("user_id", userID).
		Str("event_key", eventKey).
		Msg("Achievement event delivered")
	return nil
}
