package monitor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~", home},
		{"~/.claude/projects", filepath.Join(home, ".claude/projects")},
		{"/abs/path", "/abs/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestClaudeAgent(t *testing.T) {
	if Claude.LogSuffix != ".jsonl" {
		t.Errorf("LogSuffix = %q", Claude.LogSuffix)
	}
	if Claude.ProcessName != "claude" {
		t.Errorf("ProcessName = %q", Claude.ProcessName)
	}
	dir := Claude.ResolvedProjectsDir()
	if !filepath.IsAbs(dir) && dir != Claude.ProjectsDir {
		t.Errorf("ResolvedProjectsDir() = %q", dir)
	}
}

func TestProjectName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/h/.claude/projects/-Users-me-src-app/abc.jsonl", "app"},
		{"/h/.claude/projects/plain/abc.jsonl", "plain"},
		{"/h/.claude/projects/trailing-/abc.jsonl", "trailing"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ProjectName(tt.path); got != tt.want {
			t.Errorf("ProjectName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
