// Package daemon runs claudebell in the background: the singleton lock, the
// detached child process, the control socket and the event relay.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"claudebell/internal/log"
)

// EnvVar is set to "1" in the environment of the background child.
const EnvVar = "CLAUDEBELL_DAEMON"

const (
	startGrace   = 100 * time.Millisecond
	stopTimeout  = 5 * time.Second
	stopInterval = 100 * time.Millisecond
)

// ErrNotRunning is returned by Stop when no monitor holds the lock.
var ErrNotRunning = errors.New("daemon is not running")

// Daemon starts and stops the background monitor living in dir.
type Daemon struct {
	dir  string
	lock *Lock
}

func NewDaemon(dir string) *Daemon {
	return &Daemon{dir: dir, lock: NewLock(dir)}
}

// Started describes a freshly launched child.
type Started struct {
	PID     int
	LogPath string
}

// Start re-executes the current binary with args, detached from the terminal,
// with its output appended to today's log file.
func (d *Daemon) Start(args []string) (Started, error) {
	if running, pid := d.lock.Holder(); running {
		return Started{}, fmt.Errorf("daemon already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return Started{}, fmt.Errorf("failed to get executable path: %w", err)
	}

	logDir := log.Dir(d.dir)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return Started{}, fmt.Errorf("failed to create log directory: %w", err)
	}
	logPath := log.FilePath(logDir, time.Now())
	out, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return Started{}, fmt.Errorf("failed to open log file: %w", err)
	}
	defer out.Close()

	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), EnvVar+"=1")
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return Started{}, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	go cmd.Wait()

	time.Sleep(startGrace)
	if !alive(pid) {
		return Started{}, fmt.Errorf("daemon exited during startup (check logs at %s)", logPath)
	}

	log.Info().Int("pid", pid).Str("log", logPath).Msg("daemon started")
	return Started{PID: pid, LogPath: logPath}, nil
}

// Stop sends SIGTERM to the lock holder and waits for it to exit, falling back
// to SIGKILL. It returns the stopped PID.
func (d *Daemon) Stop() (int, error) {
	running, pid := d.lock.Holder()
	if !running || pid == 0 {
		return 0, ErrNotRunning
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return pid, fmt.Errorf("failed to stop daemon: %w", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(stopInterval)
		if !alive(pid) {
			return pid, nil
		}
	}

	log.Warn().Int("pid", pid).Msg("daemon ignored SIGTERM, killing")
	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return pid, fmt.Errorf("daemon did not stop (PID %d): %w", pid, err)
	}
	return pid, nil
}

// Restart stops a running daemon, if any, and starts a new one.
func (d *Daemon) Restart(args []string) (Started, error) {
	if running, _ := d.lock.Holder(); running {
		if _, err := d.Stop(); err != nil {
			return Started{}, fmt.Errorf("failed to stop daemon: %w", err)
		}
		time.Sleep(2 * startGrace)
	}
	return d.Start(args)
}

// Status reports whether a monitor holds the lock, its PID, and how long it
// has been up.
func (d *Daemon) Status() (running bool, pid int, uptime time.Duration) {
	running, pid = d.lock.Holder()
	if !running {
		return false, 0, 0
	}
	return true, pid, Uptime(context.Background(), pid)
}

// Uptime returns how long pid has been running, or 0 if unknown.
func Uptime(ctx context.Context, pid int) time.Duration {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return 0
	}
	created, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return 0
	}
	return time.Since(time.UnixMilli(created))
}

func alive(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// IsDaemon reports whether this process is the background child.
func IsDaemon() bool {
	return os.Getenv(EnvVar) == "1"
}
