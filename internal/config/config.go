// Package config loads and validates claudebell settings.
package config

import (
	"time"
)

// Version is the claudebell release, set at build time with -ldflags.
var Version = "0.3.0"

// Notification destinations.
const (
	NotifyDesktop = "desktop"
	NotifyStdout  = "stdout"
	NotifySlack   = "slack"
	NotifyNone    = "none"
)

// Config is the root configuration structure.
type Config struct {
	Version string        `yaml:"version" json:"version"`
	Sound   SoundConfig   `yaml:"sound" json:"sound"`
	Notify  NotifyConfig  `yaml:"notify" json:"notify"`
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`
	Daemon  DaemonConfig  `yaml:"daemon" json:"daemon"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// SoundConfig selects the alert sound. Values from the preference store
// override Name and Volume at startup.
type SoundConfig struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Name    string  `yaml:"name" json:"name"`
	Volume  float64 `yaml:"volume" json:"volume"` // 0.0 to 1.0
}

// NotifyConfig defines notification destination and settings.
type NotifyConfig struct {
	Type     string          `yaml:"type" json:"type"` // desktop, stdout, slack or none
	Slack    SlackConfig     `yaml:"slack,omitempty" json:"slack,omitempty"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
}

// WebhookConfig defines a webhook endpoint for notifications.
type WebhookConfig struct {
	URL     string            `yaml:"url" json:"url"`
	Events  []string          `yaml:"events,omitempty" json:"events,omitempty"`   // Event types to send (empty = all)
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"` // Custom HTTP headers
	Timeout int               `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Timeout in seconds (default: 10)
}

// SlackConfig holds Slack-specific notification settings.
type SlackConfig struct {
	Webhook string `yaml:"webhook" json:"webhook"`
}

// MonitorConfig controls session discovery and the activity timers.
type MonitorConfig struct {
	ProjectsDir       string `yaml:"projects_dir" json:"projects_dir"`
	LogSuffix         string `yaml:"log_suffix" json:"log_suffix"`
	ProcessName       string `yaml:"process_name" json:"process_name"`
	PollIntervalMS    int    `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	ProcessIntervalMS int    `yaml:"process_interval_ms" json:"process_interval_ms"`
	StaleAfterSeconds int    `yaml:"stale_after_seconds" json:"stale_after_seconds"`
	TurnEndDelayMS    int    `yaml:"turn_end_delay_ms" json:"turn_end_delay_ms"`
	QuestionDelayMS   int    `yaml:"question_delay_ms" json:"question_delay_ms"`
	SilenceTimeoutMS  int    `yaml:"silence_timeout_ms" json:"silence_timeout_ms"`
	ForcePolling      bool   `yaml:"force_polling" json:"force_polling"` // Skip fsnotify wake-ups
}

// DaemonConfig defines daemon mode settings.
type DaemonConfig struct {
	LogRetentionDays int `yaml:"log_retention_days" json:"log_retention_days"` // Days to keep logs (0 = forever)

	// Event file settings for external integrations
	EventFile        bool   `yaml:"event_file" json:"event_file"`
	EventFilePath    string `yaml:"event_file_path" json:"event_file_path"`         // default: ~/.claudebell/events.jsonl
	EventFileMaxSize int64  `yaml:"event_file_max_size" json:"event_file_max_size"` // bytes before rotation (default: 10MB)

	// Unix socket for status queries and clear requests
	Socket     bool   `yaml:"socket" json:"socket"`
	SocketPath string `yaml:"socket_path" json:"socket_path"` // default: ~/.claudebell/claudebell.sock
}

// LogConfig sets the diagnostic log level.
type LogConfig struct {
	Level string `yaml:"level" json:"level"` // debug, info, warn or error
}

// DefaultConfig returns a Config with the stock settings.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Sound: SoundConfig{
			Enabled: true,
			Name:    "Glass",
			Volume:  0.5,
		},
		Notify: NotifyConfig{
			Type: NotifyDesktop,
		},
		Monitor: MonitorConfig{
			ProjectsDir:       "~/.claude/projects",
			LogSuffix:         ".jsonl",
			ProcessName:       "claude",
			PollIntervalMS:    1000,
			ProcessIntervalMS: 5000,
			StaleAfterSeconds: 300,
			TurnEndDelayMS:    500,
			QuestionDelayMS:   3000,
			SilenceTimeoutMS:  1000,
		},
		Daemon: DaemonConfig{
			LogRetentionDays: 7,
			EventFile:        true,
			EventFileMaxSize: 10 * 1024 * 1024, // 10MB
			Socket:           true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// PollInterval returns the session log poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalMS) * time.Millisecond
}

// ProcessInterval returns the agent liveness check interval.
func (c *Config) ProcessInterval() time.Duration {
	return time.Duration(c.Monitor.ProcessIntervalMS) * time.Millisecond
}

// StaleAfter returns the session staleness cutoff.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Monitor.StaleAfterSeconds) * time.Second
}

// TurnEndDelay returns the notify delay for a turn that did not end in a question.
func (c *Config) TurnEndDelay() time.Duration {
	return time.Duration(c.Monitor.TurnEndDelayMS) * time.Millisecond
}

// QuestionDelay returns the notify delay for a turn that ended in a question.
func (c *Config) QuestionDelay() time.Duration {
	return time.Duration(c.Monitor.QuestionDelayMS) * time.Millisecond
}

// SilenceTimeout returns how long output may stop after a tool call before alerting.
func (c *Config) SilenceTimeout() time.Duration {
	return time.Duration(c.Monitor.SilenceTimeoutMS) * time.Millisecond
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	switch c.Notify.Type {
	case NotifyDesktop, NotifyStdout, NotifySlack, NotifyNone:
	default:
		return &ValidationError{Field: "notify.type", Message: "must be 'desktop', 'stdout', 'slack', or 'none'"}
	}

	if c.Notify.Type == NotifySlack && c.Notify.Slack.Webhook == "" {
		return &ValidationError{Field: "notify.slack.webhook", Message: "Slack webhook URL is required when type is 'slack'"}
	}

	if c.Sound.Volume < 0 || c.Sound.Volume > 1 {
		return &ValidationError{Field: "sound.volume", Message: "must be between 0.0 and 1.0"}
	}

	if c.Monitor.ProjectsDir == "" {
		return &ValidationError{Field: "monitor.projects_dir", Message: "is required"}
	}

	if c.Monitor.PollIntervalMS < 100 {
		return &ValidationError{Field: "monitor.poll_interval_ms", Message: "must be at least 100ms"}
	}

	if c.Monitor.ProcessIntervalMS < 100 {
		return &ValidationError{Field: "monitor.process_interval_ms", Message: "must be at least 100ms"}
	}

	positive := []struct {
		field string
		value int
	}{
		{"monitor.stale_after_seconds", c.Monitor.StaleAfterSeconds},
		{"monitor.turn_end_delay_ms", c.Monitor.TurnEndDelayMS},
		{"monitor.question_delay_ms", c.Monitor.QuestionDelayMS},
		{"monitor.silence_timeout_ms", c.Monitor.SilenceTimeoutMS},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return &ValidationError{Field: p.field, Message: "must be positive"}
		}
	}

	if c.Daemon.LogRetentionDays < 0 {
		return &ValidationError{Field: "daemon.log_retention_days", Message: "cannot be negative"}
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "log.level", Message: "must be 'debug', 'info', 'warn', or 'error'"}
	}

	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Field + ": " + e.Message
}
