// Package notification forwards alert lifecycle events to external systems.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/halcyonops/intel-console/internal/config"
	"github.com/halcyonops/intel-console/internal/event"
)

// WebhookNotifier posts lifecycle events to a configured webhook URL,
// rate-limited so a noisy source cannot flood the receiver.
type WebhookNotifier struct {
	config  config.WebhookConfig
	logger  *slog.Logger
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookNotifier creates a webhook notifier from config.
func NewWebhookNotifier(cfg config.WebhookConfig, logger *slog.Logger) *WebhookNotifier {
	perMin := cfg.RateLimitPerMin
	if perMin <= 0 {
		perMin = 60
	}
	return &WebhookNotifier{
		config:  cfg,
		logger:  logger,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
	}
}

// HandleEvent delivers one lifecycle event. It is subscribed to the event
// bus at startup; delivery happens off the command path and failures are
// logged, not propagated.
func (n *WebhookNotifier) HandleEvent(e event.Event) {
	if !n.config.Enabled || n.config.URL == "" {
		return
	}
	if !n.limiter.Allow() {
		n.logger.Warn("Webhook rate limit exceeded, dropping event",
			"type", e.Type,
			"alert_id", e.AlertID)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.config.Timeout)
		defer cancel()

		if err := n.send(ctx, e); err != nil {
			n.logger.Error("Failed to deliver webhook",
				"type", e.Type,
				"alert_id", e.AlertID,
				"error", err)
		}
	}()
}

func (n *WebhookNotifier) send(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("Webhook delivered", "type", e.Type, "alert_id", e.AlertID)
	return nil
}
