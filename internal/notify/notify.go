// Package notify posts watchdog events to an operator-configured webhook.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stagehand-vp/stagehand/internal/watchdog"
)

const defaultTimeout = 10 * time.Second

// Config configures the webhook notifier.
type Config struct {
	// URL is the webhook endpoint events are POSTed to.
	URL string

	// Secret is an optional HMAC-SHA256 key. When set, each request carries
	// an X-Signature-256 header over the body.
	Secret string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Notifier delivers watchdog events to a webhook endpoint.
type Notifier struct {
	cfg Config
}

// New creates a Notifier.
func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("notify: webhook URL is required")
	}
	return &Notifier{cfg: cfg.withDefaults()}, nil
}

// Run consumes events until the channel closes or ctx is cancelled.
// Delivery failures are logged and do not stop the loop.
func (n *Notifier) Run(ctx context.Context, events <-chan watchdog.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := n.Send(ctx, ev); err != nil {
				n.cfg.Logger.Warn("notify: webhook delivery failed",
					"task", ev.Task, "kind", ev.Kind, "error", err)
			}
		}
	}
}

// Send posts a single event to the webhook.
func (n *Notifier) Send(ctx context.Context, ev watchdog.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.Secret != "" {
		req.Header.Set("X-Signature-256", sign(n.cfg.Secret, body))
	}

	resp, err := n.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %d", resp.StatusCode)
	}
	return nil
}

// sign computes the HMAC-SHA256 signature header value.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
