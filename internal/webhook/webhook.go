// Package webhook delivers plain-text operator notifications. Delivery is
// best-effort only: failures are logged, never surfaced, and nothing in the
// pipeline depends on a notification arriving.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Puyodead1/matscan/internal/logging"
)

const defaultTimeout = 10 * time.Second

// Notifier posts messages to a webhook destination as {"content": message}.
type Notifier struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

// New creates a notifier for the given destination. An empty URL produces a
// disabled notifier whose Notify is a no-op.
func New(url string, timeout time.Duration, logger *logging.Logger) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.WithComponent("webhook"),
	}
}

// Enabled reports whether a destination is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Notify delivers one message. Failures of any kind are logged and
// swallowed; notifications are out-of-band operator signals, not control
// flow.
func (n *Notifier) Notify(ctx context.Context, message string) {
	if !n.Enabled() {
		return
	}

	body, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		n.logger.Error("failed to encode webhook payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("failed to build webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("webhook delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Error("webhook delivery rejected", "status", resp.StatusCode)
	}
}
