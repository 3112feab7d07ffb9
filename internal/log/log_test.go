package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"INFO":    "info",
		"warning": "warn",
		"error":   "error",
		"":        "info",
		"bogus":   "info",
	}
	for in, want := range tests {
		if got := ParseLevel(in).String(); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Setup(Options{}) })

	SetLevel("warn")
	Info().Msg("hidden")
	Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("warn missing: %s", out)
	}
}

func TestSetupFile(t *testing.T) {
	dir := t.TempDir()
	closer, err := Setup(Options{Level: "debug", Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	Debug().Str("k", "v").Msg("to file")
	closer.Close()
	Setup(Options{})

	data, err := os.ReadFile(filepath.Join(dir, CurrentLink))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"k":"v"`) {
		t.Errorf("log file = %s", data)
	}
}

func TestFileWriterRotates(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 23, 59, 0, 0, time.Local)
	w, err := newFileWriter(dir, func() time.Time { return now })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.Write([]byte("first\n"))
	now = now.Add(2 * time.Minute)
	w.Write([]byte("second\n"))

	day1, _ := os.ReadFile(filepath.Join(dir, "claudebell-2025-03-01.log"))
	day2, _ := os.ReadFile(filepath.Join(dir, "claudebell-2025-03-02.log"))
	if string(day1) != "first\n" || string(day2) != "second\n" {
		t.Errorf("day1 = %q, day2 = %q", day1, day2)
	}

	target, err := os.Readlink(filepath.Join(dir, CurrentLink))
	if err != nil {
		t.Fatal(err)
	}
	if target != "claudebell-2025-03-02.log" {
		t.Errorf("symlink -> %s", target)
	}
	if filepath.Base(w.Path()) != "claudebell-2025-03-02.log" {
		t.Errorf("Path = %s", w.Path())
	}
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"claudebell-2025-01-01.log",
		"claudebell-2025-01-09.log",
		"claudebell-2025-01-10.log",
		"claudebell-garbage.log",
		"other.log",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.Local)
	deleted, err := Cleanup(dir, 7, now)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	files, err := Files(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Name != "claudebell-2025-01-10.log" {
		t.Errorf("files = %+v", files)
	}

	t.Run("keep forever", func(t *testing.T) {
		n, err := Cleanup(dir, 0, now.AddDate(1, 0, 0))
		if err != nil || n != 0 {
			t.Errorf("Cleanup(0) = %d, %v", n, err)
		}
	})

	t.Run("missing dir", func(t *testing.T) {
		n, err := Cleanup(filepath.Join(dir, "nope"), 7, now)
		if err != nil || n != 0 {
			t.Errorf("Cleanup(missing) = %d, %v", n, err)
		}
	})
}
