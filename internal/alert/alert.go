// Package alert sends fire-and-forget chat notifications. A failed alert is
// logged and swallowed; it never blocks or fails the trading operation that
// triggered it.
package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier posts messages to a Discord webhook.
type Notifier struct {
	webhookURL string
	client     *resty.Client
	logger     *slog.Logger
}

// New creates a notifier. An empty webhookURL makes every Send a no-op,
// which lets callers construct a Notifier unconditionally.
func New(webhookURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     resty.New().SetTimeout(10 * time.Second),
		logger:     logger.With("component", "alert"),
	}
}

// Send posts message to the configured webhook in the background. Errors
// are logged, never returned, so a down webhook never affects a trading
// decision.
func (n *Notifier) Send(message string) {
	if n.webhookURL == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := n.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"content": message}).
			Post(n.webhookURL)
		if err != nil {
			n.logger.Warn("alert send failed", "error", err)
		}
	}()
}
