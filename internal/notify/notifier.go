// Package notify delivers alerts to the desktop, Slack, stdout, webhooks and
// the event file.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"claudebell/internal/config"
	"claudebell/internal/log"
)

// Notification titles.
const (
	TitleAwaiting = "Awaiting"
	TitleHolding  = "Holding"
)

// Notification is one alert to deliver.
type Notification struct {
	Event   EventType
	Title   string // e.g. "Awaiting"
	Agent   string // e.g. "Claude Code"
	Project string
	Message string
	Snippet string // last assistant text, optional
	Time    time.Time
}

// Notifier sends notifications.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
	Name() string
}

// EventSink accepts events that are not alerts, such as state changes.
type EventSink interface {
	SendEvent(ctx context.Context, e *Event) error
}

// NewAwaitingNotification reports a finished turn. question marks turns whose
// last text asks the user something.
func NewAwaitingNotification(agent, project, lastText string, question bool) *Notification {
	msg := "Turn finished, waiting for input"
	if question {
		msg = "Asked a question"
	}
	return &Notification{
		Event:   EventAwaiting,
		Title:   TitleAwaiting,
		Agent:   agent,
		Project: project,
		Message: msg,
		Snippet: lastLine(lastText),
		Time:    time.Now(),
	}
}

// NewHoldingNotification reports a tool call followed by silence.
func NewHoldingNotification(agent, project string) *Notification {
	return &Notification{
		Event:   EventHolding,
		Title:   TitleHolding,
		Agent:   agent,
		Project: project,
		Message: "Tool call pending, may need approval",
		Time:    time.Now(),
	}
}

// NewNotifier builds the primary notifier for cfg.Notify.Type plus the event
// file and webhook secondaries. extras are added as secondaries too.
func NewNotifier(cfg *config.Config, extras ...Notifier) (Notifier, error) {
	var primary Notifier
	switch cfg.Notify.Type {
	case config.NotifyDesktop, "":
		primary = NewDesktopNotifier()
	case config.NotifySlack:
		if cfg.Notify.Slack.Webhook == "" {
			return nil, fmt.Errorf("slack webhook URL is required")
		}
		primary = NewSlackNotifier(cfg.Notify.Slack.Webhook)
	case config.NotifyStdout:
		primary = NewStdoutNotifier(nil)
	case config.NotifyNone:
		primary = NopNotifier{}
	default:
		return nil, fmt.Errorf("unknown notification type: %s", cfg.Notify.Type)
	}

	var secondary []Notifier

	if cfg.Daemon.EventFile {
		eventFile, err := NewEventFileNotifier(cfg.Daemon.EventFilePath, cfg.Daemon.EventFileMaxSize)
		if err != nil {
			log.Warn().Err(err).Msg("event file disabled")
		} else {
			secondary = append(secondary, eventFile)
		}
	}

	if len(cfg.Notify.Webhooks) > 0 {
		webhooks := NewWebhookNotifier(cfg.Notify.Webhooks)
		if webhooks.EndpointCount() > 0 {
			secondary = append(secondary, webhooks)
		}
	}

	secondary = append(secondary, extras...)

	if len(secondary) > 0 {
		return NewMultiNotifier(primary, secondary...), nil
	}
	return primary, nil
}

// FormatNotification renders n as Slack-flavored text.
func FormatNotification(n *Notification, includeSnippet bool) string {
	var sb strings.Builder

	header := n.Title
	if n.Project != "" {
		header = fmt.Sprintf("%s (%s)", n.Title, n.Project)
	}
	if n.Agent != "" {
		sb.WriteString(fmt.Sprintf("*%s* | %s\n", n.Agent, header))
	} else {
		sb.WriteString(fmt.Sprintf("*%s*\n", header))
	}

	if n.Message != "" {
		sb.WriteString(n.Message)
		sb.WriteString("\n")
	}
	if includeSnippet && n.Snippet != "" {
		sb.WriteString("```\n")
		sb.WriteString(truncate(n.Snippet, 500))
		sb.WriteString("\n```")
	}

	return sb.String()
}

// lastLine returns the last non-blank line of s, trimmed.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return s[:maxLen-3] + "..."
	}
	return s[:maxLen]
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, *Notification) error { return nil }
func (NopNotifier) Name() string                              { return "none" }
