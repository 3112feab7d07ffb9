package notify

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// EventType names an event in the shared JSON schema.
type EventType string

const (
	EventAwaiting    EventType = "awaiting" // turn ended, agent waits for the user
	EventHolding     EventType = "holding"  // tool call went quiet, likely a permission prompt
	EventState       EventType = "state"    // activity state changed
	EventCleared     EventType = "cleared"  // notification flag cleared
	EventNotice      EventType = "notice"
	EventTest        EventType = "test"
	EventDaemonStart EventType = "daemon_start"
	EventDaemonStop  EventType = "daemon_stop"
)

// Event is the JSON record shared by webhooks, the event file and the socket.
type Event struct {
	ID        string         `json:"id"`
	Event     EventType      `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Agent     string         `json:"agent,omitempty"`
	Project   string         `json:"project,omitempty"`
	Title     string         `json:"title,omitempty"`
	Message   string         `json:"message,omitempty"`
	Snippet   string         `json:"snippet,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent creates an Event with a fresh ID and the current time.
func NewEvent(eventType EventType) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Event:     eventType,
		Timestamp: time.Now(),
	}
}

// NewEventFromNotification converts a Notification to an Event.
func NewEventFromNotification(n *Notification) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Event:     DetermineEventType(n),
		Timestamp: n.Time,
		Agent:     n.Agent,
		Project:   n.Project,
		Title:     n.Title,
		Message:   n.Message,
		Snippet:   n.Snippet,
	}
}

func (e *Event) WithAgent(agent string) *Event {
	e.Agent = agent
	return e
}

func (e *Event) WithMessage(message string) *Event {
	e.Message = message
	return e
}

// WithMetadata adds a key-value pair.
func (e *Event) WithMetadata(key string, value any) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// JSON returns the event as one JSON line without a trailing newline.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// DetermineEventType returns n.Event, falling back to the title.
func DetermineEventType(n *Notification) EventType {
	if n.Event != "" {
		return n.Event
	}
	switch n.Title {
	case TitleAwaiting:
		return EventAwaiting
	case TitleHolding:
		return EventHolding
	default:
		return EventNotice
	}
}
