package monitor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

func TestProcessTable(t *testing.T) {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		t.Skipf("process table unavailable: %v", err)
	}
	name, err := self.Name()
	if err != nil || name == "" {
		t.Skipf("cannot read own process name: %v", err)
	}

	t.Run("finds running process by exact name", func(t *testing.T) {
		pt := NewProcessTable()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		info, ok := pt.Find(ctx, name)
		if !ok {
			t.Fatalf("Find(%q) found nothing", name)
		}
		if info.Name != name {
			t.Errorf("Name = %q, want %q", info.Name, name)
		}

		// Second lookup goes through the cached PID.
		if !pt.IsRunning(ctx, name) {
			t.Error("IsRunning false on cached lookup")
		}
	})

	t.Run("missing process", func(t *testing.T) {
		pt := NewProcessTable()
		if pt.IsRunning(context.Background(), "claudebell-no-such-process-xyz") {
			t.Error("IsRunning true for nonexistent process")
		}
		if pt.IsRunning(context.Background(), "") {
			t.Error("IsRunning true for empty name")
		}
	})

	t.Run("canceled context means false", func(t *testing.T) {
		pt := NewProcessTable()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if pt.IsRunning(ctx, name) {
			t.Error("IsRunning true with canceled context")
		}
	})
}

func TestStaticChecker(t *testing.T) {
	if !StaticChecker(true).IsRunning(context.Background(), "x") {
		t.Error("StaticChecker(true) returned false")
	}
	if StaticChecker(false).IsRunning(context.Background(), "x") {
		t.Error("StaticChecker(false) returned true")
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{1024, "1.0KiB"},
		{1536, "1.5KiB"},
		{200 * 1024 * 1024, "200.0MiB"},
	}
	for _, tt := range tests {
		if got := HumanBytes(tt.n); got != tt.want {
			t.Errorf("HumanBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}

	got := FormatProcInfo(ProcInfo{PID: 42, RSSBytes: 2048})
	if got != "PID 42, RSS 2.0KiB" {
		t.Errorf("FormatProcInfo = %q", got)
	}
}
