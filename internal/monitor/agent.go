// Package monitor tails Claude Code session logs and infers whether the agent
// is working or waiting on the user.
package monitor

import (
	"os"
	"path/filepath"
	"strings"
)

// Agent describes where an agent writes its session logs.
type Agent struct {
	Name        string // internal name
	DisplayName string // used in notification titles
	ProjectsDir string // may start with ~
	LogSuffix   string
	ProcessName string // exact executable name
}

// Claude is the Claude Code CLI.
var Claude = Agent{
	Name:        "claude",
	DisplayName: "Claude Code",
	ProjectsDir: "~/.claude/projects",
	LogSuffix:   DefaultLogSuffix,
	ProcessName: DefaultProcessName,
}

// ResolvedProjectsDir returns ProjectsDir with ~ expanded.
func (a Agent) ResolvedProjectsDir() string {
	return ExpandPath(a.ProjectsDir)
}

// ProjectName derives a short project label from a session log path:
// ~/.claude/projects/-Users-me-src-app/<session>.jsonl -> "app".
func ProjectName(sessionPath string) string {
	if sessionPath == "" {
		return ""
	}
	dir := filepath.Base(filepath.Dir(sessionPath))
	dir = strings.TrimRight(dir, "-")
	if i := strings.LastIndex(dir, "-"); i >= 0 && i < len(dir)-1 {
		return dir[i+1:]
	}
	return dir
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~/"))
}
