package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// DefaultProcessName is the agent's executable name.
const DefaultProcessName = "claude"

// ProcessChecker reports whether a process with an exact name is running.
// Any failure, including ctx expiring, means false.
type ProcessChecker interface {
	IsRunning(ctx context.Context, name string) bool
}

// ProcInfo describes a matched agent process.
type ProcInfo struct {
	PID      int32
	Name     string
	RSSBytes uint64
	Started  time.Time
}

// ProcessTable checks the OS process table through gopsutil. The last matching
// PID is cached so a steady-state check costs one process lookup instead of a
// full scan.
type ProcessTable struct {
	mu     sync.Mutex
	cached int32
}

// NewProcessTable creates a ProcessTable.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{}
}

// IsRunning implements ProcessChecker.
func (pt *ProcessTable) IsRunning(ctx context.Context, name string) bool {
	_, ok := pt.Find(ctx, name)
	return ok
}

// Find returns the newest process named exactly name.
func (pt *ProcessTable) Find(ctx context.Context, name string) (ProcInfo, bool) {
	if name == "" {
		return ProcInfo{}, false
	}

	pt.mu.Lock()
	cached := pt.cached
	pt.mu.Unlock()

	if cached > 0 {
		if info, ok := inspect(ctx, cached, name); ok {
			return info, true
		}
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return ProcInfo{}, false
	}

	var newest ProcInfo
	found := false
	for _, p := range procs {
		if ctx.Err() != nil {
			return ProcInfo{}, false
		}
		n, err := p.NameWithContext(ctx)
		if err != nil || n != name {
			continue
		}
		info := describe(ctx, p, n)
		if !found || info.Started.After(newest.Started) {
			newest = info
			found = true
		}
	}

	pt.mu.Lock()
	if found {
		pt.cached = newest.PID
	} else {
		pt.cached = 0
	}
	pt.mu.Unlock()

	return newest, found
}

// inspect checks a single PID is still alive and still named name.
func inspect(ctx context.Context, pid int32, name string) (ProcInfo, bool) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return ProcInfo{}, false
	}
	running, err := p.IsRunningWithContext(ctx)
	if err != nil || !running {
		return ProcInfo{}, false
	}
	n, err := p.NameWithContext(ctx)
	if err != nil || n != name {
		return ProcInfo{}, false
	}
	return describe(ctx, p, n), true
}

func describe(ctx context.Context, p *process.Process, name string) ProcInfo {
	info := ProcInfo{PID: p.Pid, Name: name}
	if created, err := p.CreateTimeWithContext(ctx); err == nil {
		info.Started = time.UnixMilli(created)
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	return info
}

// FormatProcInfo formats a process for display.
func FormatProcInfo(info ProcInfo) string {
	return fmt.Sprintf("PID %d, RSS %s", info.PID, HumanBytes(int64(info.RSSBytes)))
}

// HumanBytes formats bytes in human-readable form.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for n >= unit*div && exp < 5 {
		div *= unit
		exp++
	}
	value := float64(n) / float64(div)
	return fmt.Sprintf("%.1f%ciB", value, "KMGTPE"[exp])
}

// StaticChecker is a ProcessChecker with a fixed answer.
type StaticChecker bool

func (s StaticChecker) IsRunning(context.Context, string) bool { return bool(s) }
