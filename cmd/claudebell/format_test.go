package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 10*time.Minute, "2h 10m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatAge(t *testing.T) {
	if got := formatAge(time.Time{}); got != "unknown" {
		t.Errorf("zero time = %q", got)
	}
	if got := formatAge(time.Now()); got != "just now" {
		t.Errorf("now = %q", got)
	}
	if got := formatAge(time.Now().Add(-90 * time.Minute)); got != "1h ago" {
		t.Errorf("90m = %q", got)
	}
}

func TestTailFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("last lines", func(t *testing.T) {
		var buf bytes.Buffer
		if err := tailFile(&buf, path, 2); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "three\nfour\n" {
			t.Errorf("got %q", buf.String())
		}
	})

	t.Run("more than available", func(t *testing.T) {
		var buf bytes.Buffer
		if err := tailFile(&buf, path, 10); err != nil {
			t.Fatal(err)
		}
		if strings.Count(buf.String(), "\n") != 4 {
			t.Errorf("got %q", buf.String())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if err := tailFile(&bytes.Buffer{}, filepath.Join(t.TempDir(), "nope"), 5); err == nil {
			t.Error("expected error")
		}
	})
}

func TestFollowFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(path, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var buf syncWriter
	done := make(chan error, 1)
	go func() { done <- followFile(ctx, &buf, path) }()

	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(buf.String(), "new") && time.Now().Before(deadline) {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			t.Fatal(err)
		}
		f.WriteString("new\n")
		f.Close()
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("followFile: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "new\n") {
		t.Errorf("followed %q, want appended lines", got)
	}
	if strings.Contains(got, "old") {
		t.Errorf("followed %q, want no existing content", got)
	}
}

type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
