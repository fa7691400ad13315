package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nightfeed/internal/config"
)

func newWebhookConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.WebhookURL = url
	cfg.Notifications.RunCompleted = true
	cfg.Notifications.RunFailed = true
	return &cfg
}

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.WebhookURL = ""

	service := NewService(&cfg)
	if _, ok := service.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", service)
	}
	if err := service.NotifyRunFailed(context.Background(), "2026-08-17", "boom"); err != nil {
		t.Fatalf("noop must never error: %v", err)
	}
}

func TestNotifyRunCompleted(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	service := NewService(newWebhookConfig(server.URL))
	if err := service.NotifyRunCompleted(context.Background(), "2026-08-17", "handed_off", 7); err != nil {
		t.Fatalf("NotifyRunCompleted: %v", err)
	}
	if !strings.Contains(received.Content, "2026-08-17") || !strings.Contains(received.Content, "7 signals") {
		t.Fatalf("unexpected message %q", received.Content)
	}
}

func TestNotifyRunFailedRespectsToggle(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := newWebhookConfig(server.URL)
	cfg.Notifications.RunFailed = false
	service := NewService(cfg)

	if err := service.NotifyRunFailed(context.Background(), "2026-08-17", "insufficient sources"); err != nil {
		t.Fatalf("NotifyRunFailed: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected suppressed notification, got %d calls", calls)
	}
}

func TestSendReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	service := NewService(newWebhookConfig(server.URL))
	if err := service.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
