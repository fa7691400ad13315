package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nightfeed/internal/config"
)

const userAgent = "Nightfeed-Go/1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyRunCompleted(ctx context.Context, date string, status string, signals int) error
	NotifyRunFailed(ctx context.Context, date string, cause string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a webhook-backed notification service when configured.
// When no webhook URL is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	url := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if url == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &webhookService{
		endpoint:     url,
		client:       &http.Client{Timeout: timeout},
		runCompleted: cfg.Notifications.RunCompleted,
		runFailed:    cfg.Notifications.RunFailed,
	}
}

type webhookService struct {
	endpoint     string
	client       *http.Client
	runCompleted bool
	runFailed    bool
}

type webhookPayload struct {
	Content string `json:"content"`
}

func (w *webhookService) NotifyRunCompleted(ctx context.Context, date, status string, signals int) error {
	if !w.runCompleted {
		return nil
	}
	message := fmt.Sprintf("Night-Feed run for %s finished (%s) with %d signals.", date, status, signals)
	return w.send(ctx, message)
}

func (w *webhookService) NotifyRunFailed(ctx context.Context, date, cause string) error {
	if !w.runFailed {
		return nil
	}
	cause = strings.TrimSpace(cause)
	if cause == "" {
		cause = "unknown cause"
	}
	message := fmt.Sprintf("Night-Feed run for %s FAILED: %s", date, cause)
	return w.send(ctx, message)
}

func (w *webhookService) TestNotification(ctx context.Context) error {
	return w.send(ctx, "Night-Feed test notification.")
}

func (w *webhookService) send(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{Content: message})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, string, string, int) error { return nil }
func (noopService) NotifyRunFailed(context.Context, string, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }

// NewNoop returns a notification service that discards everything.
func NewNoop() Service {
	return noopService{}
}
