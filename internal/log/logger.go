// Package log is the process-wide zerolog logger.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger     zerolog.Logger
	loggerLock sync.RWMutex
)

func init() {
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
}

// Options configures Setup.
type Options struct {
	Level string
	// Dir, when set, switches to JSON lines in a dated file under Dir.
	Dir string
	// Console receives human-readable output when Dir is empty. Defaults to stderr.
	Console io.Writer
}

// Setup replaces the global logger. The returned closer releases the log file,
// if any.
func Setup(opts Options) (io.Closer, error) {
	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)

	if opts.Dir != "" {
		fw, err := NewFileWriter(opts.Dir)
		if err != nil {
			return nil, err
		}
		out, closer = fw, fw
	} else {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		out = zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}
	}

	loggerLock.Lock()
	logger = zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	loggerLock.Unlock()
	return closer, nil
}

// SetOutput sends raw JSON log lines to w, keeping the current level.
func SetOutput(w io.Writer) {
	loggerLock.Lock()
	logger = zerolog.New(w).Level(logger.GetLevel()).With().Timestamp().Logger()
	loggerLock.Unlock()
}

// SetLevel sets the global log level at runtime.
func SetLevel(levelStr string) {
	level := ParseLevel(levelStr)
	loggerLock.Lock()
	logger = logger.Level(level)
	loggerLock.Unlock()
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func current() zerolog.Logger {
	loggerLock.RLock()
	defer loggerLock.RUnlock()
	return logger
}

func Debug() *zerolog.Event {
	l := current()
	return l.Debug()
}

func Info() *zerolog.Event {
	l := current()
	return l.Info()
}

func Warn() *zerolog.Event {
	l := current()
	return l.Warn()
}

func Error() *zerolog.Event {
	l := current()
	return l.Error()
}

// Logger returns the underlying zerolog.Logger.
func Logger() zerolog.Logger {
	return current()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
