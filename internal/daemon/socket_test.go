package daemon

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"claudebell/internal/monitor"
	"claudebell/internal/notify"
)

type fakeController struct {
	mu       sync.Mutex
	status   monitor.Status
	notified bool
	clears   int
}

func (f *fakeController) Snapshot() monitor.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.status
	st.Notified = f.notified
	return st
}

func (f *fakeController) ClearNotification() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	was := f.notified
	f.notified = false
	return was
}

func startServer(t *testing.T, ctrl Controller) *SocketServer {
	t.Helper()
	server, err := NewSocketServer(filepath.Join(t.TempDir(), "test.sock"))
	if err != nil {
		t.Fatalf("NewSocketServer failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	server.Start(ctx, ctrl)
	return server
}

// dial connects and consumes the welcome line.
func dial(t *testing.T, server *SocketServer) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("unix", server.Path())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	reader := bufio.NewReader(conn)
	if m := readMessage(t, conn, reader); m.Type != MessageWelcome {
		t.Fatalf("first message = %+v, want welcome", m)
	}
	return conn, reader
}

func readMessage(t *testing.T, conn net.Conn, r *bufio.Reader) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m Message
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("bad message %q: %v", line, err)
	}
	return m
}

func TestSocketServer_CreateAndClose(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "test.sock")

	server, err := NewSocketServer(sockPath)
	if err != nil {
		t.Fatalf("NewSocketServer failed: %v", err)
	}
	if server.Path() != sockPath {
		t.Errorf("Path = %q, want %q", server.Path(), sockPath)
	}

	info, err := os.Stat(sockPath)
	if err != nil {
		t.Fatalf("Socket file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("socket mode = %v", info.Mode().Perm())
	}

	if err := server.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := os.Stat(sockPath); !os.IsNotExist(err) {
		t.Error("Socket file should be removed after close")
	}
}

func TestDefaultSocketPath(t *testing.T) {
	if got := DefaultSocketPath(); !strings.HasSuffix(got, filepath.Join(".claudebell", "claudebell.sock")) {
		t.Errorf("DefaultSocketPath = %q", got)
	}
}

func TestSocketServer_Commands(t *testing.T) {
	ctrl := &fakeController{
		status:   monitor.Status{State: monitor.StateWaitingInput, Project: "api"},
		notified: true,
	}
	server := startServer(t, ctrl)
	conn, reader := dial(t, server)

	tests := []struct {
		cmd   string
		check func(t *testing.T, m Message)
	}{
		{"status", func(t *testing.T, m Message) {
			if m.Type != MessageStatus || m.Status == nil {
				t.Fatalf("reply = %+v", m)
			}
			if m.Status.State != monitor.StateWaitingInput || !m.Status.Notified || m.Status.Project != "api" {
				t.Errorf("status = %+v", *m.Status)
			}
		}},
		{"CLEAR", func(t *testing.T, m Message) {
			if m.Type != MessageCleared || !m.Cleared {
				t.Errorf("reply = %+v", m)
			}
		}},
		{"clear", func(t *testing.T, m Message) {
			if m.Type != MessageCleared || m.Cleared {
				t.Errorf("reply = %+v", m)
			}
		}},
		{"reboot", func(t *testing.T, m Message) {
			if m.Type != MessageError || !strings.Contains(m.Error, "reboot") {
				t.Errorf("reply = %+v", m)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			if _, err := conn.Write([]byte(tt.cmd + "\n")); err != nil {
				t.Fatal(err)
			}
			tt.check(t, readMessage(t, conn, reader))
		})
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.clears != 2 {
		t.Errorf("clears = %d, want 2", ctrl.clears)
	}
}

func TestSocketServer_Broadcast(t *testing.T) {
	server := startServer(t, &fakeController{})
	conn1, reader1 := dial(t, server)
	conn2, reader2 := dial(t, server)

	if server.ClientCount() != 2 {
		t.Errorf("ClientCount = %d, want 2", server.ClientCount())
	}

	server.BroadcastEvent(notify.NewEvent(notify.EventHolding).WithAgent("Claude Code"))
	server.BroadcastUpdate(monitor.Update{
		Kind:   monitor.UpdateCleared,
		Status: monitor.Status{State: monitor.StateWorking},
	})

	for i, c := range []struct {
		conn   net.Conn
		reader *bufio.Reader
	}{{conn1, reader1}, {conn2, reader2}} {
		m := readMessage(t, c.conn, c.reader)
		if m.Type != MessageEvent || m.Event == nil || m.Event.Event != notify.EventHolding {
			t.Errorf("client %d event = %+v", i, m)
		}
		m = readMessage(t, c.conn, c.reader)
		if m.Type != MessageUpdate || m.Kind != "cleared" || m.Status.State != monitor.StateWorking {
			t.Errorf("client %d update = %+v", i, m)
		}
	}
}

func TestSocketServer_ClientDisconnect(t *testing.T) {
	server := startServer(t, &fakeController{})
	conn, _ := dial(t, server)

	if server.ClientCount() != 1 {
		t.Errorf("ClientCount before disconnect = %d, want 1", server.ClientCount())
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for server.ClientCount() != 0 && time.Now().Before(deadline) {
		server.BroadcastEvent(notify.NewEvent(notify.EventState))
		time.Sleep(20 * time.Millisecond)
	}
	if server.ClientCount() != 0 {
		t.Errorf("ClientCount after disconnect = %d, want 0", server.ClientCount())
	}
}

func TestSocketNotifier(t *testing.T) {
	server := startServer(t, &fakeController{})
	conn, reader := dial(t, server)

	notifier := NewSocketNotifier(server)
	if notifier.Name() != "socket" {
		t.Errorf("Name = %q, want 'socket'", notifier.Name())
	}

	n := notify.NewAwaitingNotification("Claude Code", "api", "Done.", false)
	if err := notifier.Send(context.Background(), n); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	m := readMessage(t, conn, reader)
	if m.Event == nil || m.Event.Event != notify.EventAwaiting || m.Event.Agent != "Claude Code" {
		t.Errorf("message = %+v", m)
	}

	if err := notifier.SendEvent(context.Background(), notify.NewEvent(notify.EventCleared)); err != nil {
		t.Fatal(err)
	}
	if m := readMessage(t, conn, reader); m.Event == nil || m.Event.Event != notify.EventCleared {
		t.Errorf("message = %+v", m)
	}
}

func TestRequest(t *testing.T) {
	ctrl := &fakeController{status: monitor.Status{State: monitor.StateIdle}, notified: true}
	server := startServer(t, ctrl)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	m, err := Request(ctx, server.Path(), CommandStatus)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if m.Status == nil || !m.Status.Notified {
		t.Errorf("status reply = %+v", m)
	}

	m, err = Request(ctx, server.Path(), CommandClear)
	if err != nil || !m.Cleared {
		t.Errorf("clear reply = %+v, %v", m, err)
	}

	if _, err := Request(ctx, server.Path(), "bogus"); err == nil {
		t.Error("expected error for unknown command")
	}

	t.Run("no server", func(t *testing.T) {
		if _, err := Request(ctx, filepath.Join(t.TempDir(), "none.sock"), CommandStatus); err == nil {
			t.Error("expected dial error")
		}
	})
}
