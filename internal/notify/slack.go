package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

const slackTimeout = 10 * time.Second

// SlackNotifier posts to a Slack incoming webhook.
type SlackNotifier struct {
	webhook string
	client  *http.Client
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhook: webhookURL,
		client:  &http.Client{Timeout: slackTimeout},
	}
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

func (s *SlackNotifier) Send(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(map[string]string{"text": FormatNotification(n, true)})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := post(ctx, s.client, s.webhook, nil, slackTimeout, data); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}

// TestWebhook sends a test message to verify the webhook works.
func (s *SlackNotifier) TestWebhook(ctx context.Context) error {
	return s.Send(ctx, &Notification{
		Event:   EventTest,
		Title:   "Test Notification",
		Agent:   "claudebell",
		Message: "Webhook configuration is working!",
		Time:    time.Now(),
	})
}
