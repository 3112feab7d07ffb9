package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestNewLock(t *testing.T) {
	dir := t.TempDir()
	lock := NewLock(dir)

	if lock.Path() != filepath.Join(dir, "claudebell.lock") {
		t.Errorf("Lock path = %q", lock.Path())
	}
}

func TestLockTryLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	lock := NewLock(dir)

	if err := lock.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}

	data, err := os.ReadFile(lock.Path())
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file holds %q", data)
	}

	t.Run("second holder is refused", func(t *testing.T) {
		err := NewLock(dir).TryLock()
		if !errors.Is(err, ErrLocked) {
			t.Fatalf("TryLock = %v, want ErrLocked", err)
		}
		if !strings.Contains(err.Error(), strconv.Itoa(os.Getpid())) {
			t.Errorf("error %q does not name the holder", err)
		}
	})

	if err := lock.Unlock(); err != nil {
		t.Errorf("Unlock failed: %v", err)
	}
	if _, err := os.Stat(lock.Path()); !os.IsNotExist(err) {
		t.Error("lock file not removed")
	}
	if err := lock.Unlock(); err != nil {
		t.Errorf("second Unlock: %v", err)
	}
}

func TestLockHolder(t *testing.T) {
	dir := t.TempDir()
	lock := NewLock(dir)

	if running, _ := lock.Holder(); running {
		t.Error("Holder reports running with no lock file")
	}

	if err := lock.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer lock.Unlock()

	running, pid := NewLock(dir).Holder()
	if !running {
		t.Error("Holder returned false while the lock is held")
	}
	if pid != os.Getpid() {
		t.Errorf("PID = %d, want %d", pid, os.Getpid())
	}
}

func TestDaemonStatus(t *testing.T) {
	d := NewDaemon(t.TempDir())

	running, pid, uptime := d.Status()
	if running || pid != 0 || uptime != 0 {
		t.Errorf("Status = %v, %d, %v; want stopped", running, pid, uptime)
	}

	if _, err := d.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop = %v, want ErrNotRunning", err)
	}

	t.Run("held by this process", func(t *testing.T) {
		if err := d.lock.TryLock(); err != nil {
			t.Fatal(err)
		}
		defer d.lock.Unlock()

		running, pid, uptime := d.Status()
		if !running || pid != os.Getpid() {
			t.Errorf("Status = %v, %d", running, pid)
		}
		if uptime < 0 || uptime > 24*time.Hour {
			t.Errorf("uptime = %v", uptime)
		}
		if _, err := d.Start(nil); err == nil {
			t.Error("Start succeeded while the lock is held")
		}
	})
}

func TestIsDaemon(t *testing.T) {
	t.Setenv(EnvVar, "")
	if IsDaemon() {
		t.Error("IsDaemon without the marker")
	}
	t.Setenv(EnvVar, "1")
	if !IsDaemon() {
		t.Error("IsDaemon with the marker")
	}
}
