// Package webhook is the driven adapter that forwards inbound messages to
// the downstream HTTP consumer.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clinicops/wa-adapter/internal/domain/model"
	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.InboundSink = (*Client)(nil)

// Client posts normalized inbound messages to a configured webhook URL,
// authenticating with the shared secret in the X-Token header. A non-2xx
// response is an error; the relay logs and drops it.
type Client struct {
	url    string
	secret string
	http   *http.Client
}

// NewClient creates a webhook sink. The http.Client's own timeout is left
// unset; the relay bounds each delivery through its context.
func NewClient(url, secret string) *Client {
	return &Client{
		url:    url,
		secret: secret,
		http:   &http.Client{},
	}
}

// Name identifies the sink in relay logs.
func (c *Client) Name() string {
	return "webhook"
}

// Deliver posts one message as {from, type, text, timestamp} JSON.
func (c *Client) Deliver(ctx context.Context, msg model.InboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Token", c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
