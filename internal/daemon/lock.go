package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockName is the lock file kept in the state directory.
const LockName = "claudebell.lock"

// ErrLocked is returned by TryLock when another monitor holds the lock.
var ErrLocked = errors.New("another monitor is running")

// Lock is an flock-based singleton. The holder writes its PID into the file.
type Lock struct {
	path string
	file *os.File
}

func NewLock(dir string) *Lock {
	return &Lock{path: filepath.Join(dir, LockName)}
}

// TryLock takes the lock without blocking. If another process holds it the
// error wraps ErrLocked and names that process's PID.
func (l *Lock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		pid := readPID(f)
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			if pid > 0 {
				return fmt.Errorf("%w (PID %d)", ErrLocked, pid)
			}
			return ErrLocked
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := writePID(f, os.Getpid()); err != nil {
		l.release(f)
		return err
	}

	l.file = f
	return nil
}

func writePID(f *os.File, pid int) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
		return fmt.Errorf("failed to write PID: %w", err)
	}
	return f.Sync()
}

// Unlock releases the lock and removes the file. It is a no-op when not held.
func (l *Lock) Unlock() error {
	if l.file == nil {
		return nil
	}
	l.release(l.file)
	return nil
}

func (l *Lock) release(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
	l.file = nil
	os.Remove(l.path)
}

func readPID(f *os.File) int {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0
	}
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

// Holder reports whether some process holds the lock, and its PID.
func (l *Lock) Holder() (bool, int) {
	f, err := os.Open(l.path)
	if err != nil {
		return false, 0
	}
	defer f.Close()

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if errors.Is(err, syscall.EWOULDBLOCK) {
		return true, readPID(f)
	}
	if err == nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}
	return false, 0
}

func (l *Lock) Path() string {
	return l.path
}
