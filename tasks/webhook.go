package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mtask/mtask/task"
)

// TaskDeliverWebhook is the registered name of the webhook delivery task.
const TaskDeliverWebhook = "deliver_webhook"

// WebhookPayload describes one outbound webhook delivery. Body is
// posted as-is when set; otherwise an event envelope is built from
// Event.
type WebhookPayload struct {
	TenantID string          `json:"tenant_id"`
	URL      string          `json:"url"`
	Event    string          `json:"event,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
}

// WebhookResult records a completed delivery.
type WebhookResult struct {
	Status     string `json:"status"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
}

// Webhook posts JSON events to tenant-provided endpoints.
type Webhook struct {
	client *http.Client
	logger *slog.Logger
}

// NewWebhook creates the webhook task body. client may be nil to use a
// default with a 10s timeout.
func NewWebhook(client *http.Client, logger *slog.Logger) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{client: client, logger: logger}
}

// Definition returns the typed task definition for registration.
func (w *Webhook) Definition() *task.Definition[WebhookPayload] {
	return task.NewDefinition(TaskDeliverWebhook, w.Run)
}

// Run POSTs the event to the endpoint. Network errors and non-2xx
// responses are transient: the endpoint may recover, so the delivery
// is retried within the attempt budget.
func (w *Webhook) Run(ctx context.Context, p WebhookPayload) task.Outcome {
	if p.URL == "" {
		return task.Fail(fmt.Errorf("deliver_webhook: empty url"))
	}

	body := []byte(p.Body)
	if len(body) == 0 {
		var err error
		body, err = json.Marshal(map[string]string{
			"tenant_id": p.TenantID,
			"event":     p.Event,
		})
		if err != nil {
			return task.Fail(fmt.Errorf("deliver_webhook: marshal event: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return task.Fail(fmt.Errorf("deliver_webhook: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return task.Retry(fmt.Errorf("deliver_webhook: post %s: %w", p.URL, err))
	}
	defer resp.Body.Close() //nolint:errcheck // drained below
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return task.Retry(fmt.Errorf("deliver_webhook: %s responded %d", p.URL, resp.StatusCode))
	}

	w.logger.Info("webhook delivered",
		slog.String("tenant_id", p.TenantID),
		slog.String("url", p.URL),
		slog.Int("status_code", resp.StatusCode),
	)
	return task.Success(WebhookResult{Status: "delivered", URL: p.URL, StatusCode: resp.StatusCode})
}
