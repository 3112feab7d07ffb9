package notify

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
)

// DesktopNotifier shows a native desktop notification.
type DesktopNotifier struct {
	notify func(title, message string) error
}

func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (d *DesktopNotifier) Name() string {
	return "desktop"
}

func (d *DesktopNotifier) Send(ctx context.Context, n *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	title := n.Title
	if n.Agent != "" {
		title = fmt.Sprintf("%s: %s", n.Agent, n.Title)
	}
	if n.Project != "" {
		title += " (" + n.Project + ")"
	}

	body := n.Message
	if n.Snippet != "" {
		body += "\n" + truncate(n.Snippet, 200)
	}

	if err := d.notify(title, body); err != nil {
		return fmt.Errorf("desktop notification failed: %w", err)
	}
	return nil
}
