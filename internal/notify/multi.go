package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"claudebell/internal/log"
)

// MultiNotifier sends notifications to multiple notifiers.
type MultiNotifier struct {
	primary   Notifier
	secondary []Notifier
}

// NewMultiNotifier creates a notifier that sends to multiple destinations.
// The primary notifier is required; secondary notifiers are optional.
func NewMultiNotifier(primary Notifier, secondary ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		primary:   primary,
		secondary: secondary,
	}
}

// Name returns the combined notifier names.
func (m *MultiNotifier) Name() string {
	names := []string{m.primary.Name()}
	for _, n := range m.secondary {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

// Send delivers n to every notifier. Secondary failures are logged and do not
// fail the send; a primary failure is returned after the secondaries ran.
func (m *MultiNotifier) Send(ctx context.Context, n *Notification) error {
	primaryErr := m.primary.Send(ctx, n)

	for _, notifier := range m.secondary {
		if err := notifier.Send(ctx, n); err != nil {
			log.Debug().Err(err).Str("notifier", notifier.Name()).Msg("secondary notifier failed")
		}
	}

	if primaryErr != nil {
		return fmt.Errorf("primary notifier (%s) failed: %w", m.primary.Name(), primaryErr)
	}
	return nil
}

// SendEvent forwards e to every member that accepts raw events. Failures are
// logged and the first one is returned.
func (m *MultiNotifier) SendEvent(ctx context.Context, e *Event) error {
	var first error
	for _, n := range append([]Notifier{m.primary}, m.secondary...) {
		sink, ok := n.(EventSink)
		if !ok {
			continue
		}
		if err := sink.SendEvent(ctx, e); err != nil {
			log.Debug().Err(err).Str("notifier", n.Name()).Str("event", string(e.Event)).Msg("event delivery failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Primary returns the primary notifier.
func (m *MultiNotifier) Primary() Notifier {
	return m.primary
}

// Secondary returns the secondary notifiers.
func (m *MultiNotifier) Secondary() []Notifier {
	return m.secondary
}

// Close closes all notifiers that implement io.Closer.
func (m *MultiNotifier) Close() error {
	var errs []error

	if closer, ok := m.primary.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	for _, n := range m.secondary {
		if closer, ok := n.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}
