package webhook

import (
	"context"
	"log/slog"

	"github.com/ccollicutt/logmatrix/pkg/config"
	"github.com/ccollicutt/logmatrix/pkg/output"
)

// Delivery records the outcome for one configured webhook.
type Delivery struct {
	Name     string
	Skipped  bool
	Response *Response
}

// Notifier fans a report out to every configured webhook whose trigger
// matches. Failures are logged and never abort extraction.
type Notifier struct {
	client   *Client
	webhooks []config.WebhookConfig
	logger   *slog.Logger
}

// NewNotifier creates a notifier. A nil logger discards output.
func NewNotifier(client *Client, webhooks []config.WebhookConfig, logger *slog.Logger) *Notifier {
	if client == nil {
		client = NewClient()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{client: client, webhooks: webhooks, logger: logger}
}

// ShouldFire reports whether a webhook with the given trigger fires.
// Unknown triggers behave like on_issues.
func ShouldFire(trigger config.WebhookTrigger, hasIssues bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return hasIssues
	}
}

// Notify sends report to each webhook in order.
func (n *Notifier) Notify(ctx context.Context, report *output.Report) []Delivery {
	deliveries := make([]Delivery, 0, len(n.webhooks))
	hasIssues := report.HasIssues()

	for _, wh := range n.webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if !ShouldFire(wh.Trigger, hasIssues) {
			deliveries = append(deliveries, Delivery{Name: name, Skipped: true})
			continue
		}

		resp := n.client.Send(ctx, report, SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})
		deliveries = append(deliveries, Delivery{Name: name, Response: resp})

		if resp.Success() {
			n.logger.Info("webhook sent", "webhook", name, "status", resp.StatusCode, "duration", resp.Duration)
		} else {
			n.logger.Warn("webhook failed", "webhook", name, "error", resp.Error)
		}
	}

	return deliveries
}
