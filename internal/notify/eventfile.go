package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"claudebell/internal/config"
)

const defaultEventFileMaxSize = 10 * 1024 * 1024

// EventFileNotifier appends events to a JSONL file, renaming it aside once it
// reaches maxSize.
type EventFileNotifier struct {
	path    string
	maxSize int64
	mu      sync.Mutex
	file    *os.File
}

// DefaultEventFilePath returns ~/.claudebell/events.jsonl.
func DefaultEventFilePath() string {
	return filepath.Join(config.DefaultConfigDir(), "events.jsonl")
}

// NewEventFileNotifier uses DefaultEventFilePath for an empty path and 10MB
// for a zero maxSize.
func NewEventFileNotifier(path string, maxSize int64) (*EventFileNotifier, error) {
	if path == "" {
		if config.DefaultConfigDir() == "" {
			return nil, fmt.Errorf("failed to get home directory")
		}
		path = DefaultEventFilePath()
	}
	if maxSize <= 0 {
		maxSize = defaultEventFileMaxSize
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return &EventFileNotifier{path: path, maxSize: maxSize}, nil
}

func (e *EventFileNotifier) Name() string {
	return "eventfile"
}

func (e *EventFileNotifier) Path() string {
	return e.path
}

func (e *EventFileNotifier) Send(ctx context.Context, n *Notification) error {
	return e.WriteEvent(NewEventFromNotification(n))
}

func (e *EventFileNotifier) SendEvent(_ context.Context, event *Event) error {
	return e.WriteEvent(event)
}

// WriteEvent appends one event line.
func (e *EventFileNotifier) WriteEvent(event *Event) error {
	data, err := event.JSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.maybeRotate(); err != nil {
		return fmt.Errorf("failed to rotate event file: %w", err)
	}

	if e.file == nil {
		f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open event file: %w", err)
		}
		e.file = f
	}

	if _, err := e.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return e.file.Sync()
}

// maybeRotate requires e.mu.
func (e *EventFileNotifier) maybeRotate() error {
	info, err := os.Stat(e.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < e.maxSize {
		return nil
	}

	if e.file != nil {
		e.file.Close()
		e.file = nil
	}

	rotated := e.path + "." + time.Now().Format("2006-01-02-150405.000")
	return os.Rename(e.path, rotated)
}

func (e *EventFileNotifier) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	return err
}

func (e *EventFileNotifier) EmitDaemonStart() error {
	return e.WriteEvent(NewEvent(EventDaemonStart).
		WithAgent("claudebell").
		WithMessage("claudebell daemon started"))
}

func (e *EventFileNotifier) EmitDaemonStop() error {
	return e.WriteEvent(NewEvent(EventDaemonStop).
		WithAgent("claudebell").
		WithMessage("claudebell daemon stopping"))
}
