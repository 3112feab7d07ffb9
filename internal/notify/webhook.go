package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"claudebell/internal/config"
)

const (
	webhookAttempts       = 3
	defaultWebhookTimeout = 10 * time.Second
)

var userAgent = "claudebell/" + config.Version

// WebhookNotifier posts events as JSON to configured endpoints.
type WebhookNotifier struct {
	webhooks []webhookEndpoint
	client   *http.Client
	backoff  time.Duration // first retry delay, doubled per attempt
}

type webhookEndpoint struct {
	url     string
	events  map[string]bool // nil means every event
	headers map[string]string
	timeout time.Duration
}

// NewWebhookNotifier skips entries without a URL.
func NewWebhookNotifier(configs []config.WebhookConfig) *WebhookNotifier {
	endpoints := make([]webhookEndpoint, 0, len(configs))
	for _, cfg := range configs {
		if cfg.URL == "" {
			continue
		}
		endpoints = append(endpoints, newEndpoint(cfg))
	}

	return &WebhookNotifier{
		webhooks: endpoints,
		client:   &http.Client{Timeout: 30 * time.Second},
		backoff:  time.Second,
	}
}

func newEndpoint(cfg config.WebhookConfig) webhookEndpoint {
	ep := webhookEndpoint{
		url:     cfg.URL,
		headers: cfg.Headers,
		timeout: defaultWebhookTimeout,
	}
	if cfg.Timeout > 0 {
		ep.timeout = time.Duration(cfg.Timeout) * time.Second
	}
	if len(cfg.Events) > 0 {
		ep.events = make(map[string]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			ep.events[e] = true
		}
	}
	return ep
}

func (e webhookEndpoint) accepts(t EventType) bool {
	return e.events == nil || e.events[string(t)] || e.events["all"]
}

func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// EndpointCount returns the number of usable endpoints.
func (w *WebhookNotifier) EndpointCount() int {
	return len(w.webhooks)
}

func (w *WebhookNotifier) Send(ctx context.Context, n *Notification) error {
	if len(w.webhooks) == 0 {
		return nil
	}
	return w.SendEvent(ctx, NewEventFromNotification(n))
}

// SendEvent posts event to every endpoint whose filter accepts it. Endpoints
// are tried independently; the last failure is returned.
func (w *WebhookNotifier) SendEvent(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var lastErr error
	for _, ep := range w.webhooks {
		if !ep.accepts(event.Event) {
			continue
		}
		if err := w.deliver(ctx, ep, data); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// deliver retries with exponential backoff.
func (w *WebhookNotifier) deliver(ctx context.Context, ep webhookEndpoint, data []byte) error {
	var lastErr error
	delay := w.backoff
	for attempt := 0; attempt < webhookAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		lastErr = post(ctx, w.client, ep.url, ep.headers, ep.timeout, data)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", webhookAttempts, lastErr)
}

func post(ctx context.Context, client *http.Client, url string, headers map[string]string, timeout time.Duration, data []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// TestWebhook posts a single test event to url.
func TestWebhook(ctx context.Context, url string, headers map[string]string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultWebhookTimeout
	}

	event := NewEvent(EventTest).
		WithAgent("claudebell").
		WithMessage("Webhook configuration is working!")
	event.Title = "Test Notification"

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return post(ctx, &http.Client{Timeout: timeout}, url, headers, timeout, data)
}
