package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"claudebell/internal/config"
	"claudebell/internal/log"
	"claudebell/internal/monitor"
	"claudebell/internal/notify"
)

// SocketName is the control socket kept in the state directory.
const SocketName = "claudebell.sock"

// Socket commands, one per line.
const (
	CommandStatus = "status"
	CommandClear  = "clear"
)

// Message types written by the server, one JSON object per line.
const (
	MessageWelcome = "welcome"
	MessageUpdate  = "update"  // broadcast on every watcher update
	MessageEvent   = "event"   // broadcast notification or state event
	MessageStatus  = "status"  // reply to "status"
	MessageCleared = "cleared" // reply to "clear"
	MessageError   = "error"   // reply to an unknown command
)

const writeTimeout = 5 * time.Second

// Message is one line on the control socket.
type Message struct {
	Type    string          `json:"type"`
	Kind    string          `json:"kind,omitempty"`
	Status  *monitor.Status `json:"status,omitempty"`
	Event   *notify.Event   `json:"event,omitempty"`
	Cleared bool            `json:"cleared,omitempty"`
	Error   string          `json:"error,omitempty"`
	Version string          `json:"version,omitempty"`
}

// Controller is the part of the watcher the socket exposes.
type Controller interface {
	Snapshot() monitor.Status
	ClearNotification() bool
}

// DefaultSocketPath returns ~/.claudebell/claudebell.sock.
func DefaultSocketPath() string {
	return filepath.Join(config.DefaultConfigDir(), SocketName)
}

type client struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.conn.Write(data)
	return err
}

// SocketServer serves status queries and clear requests on a unix socket and
// pushes updates to every connected client.
type SocketServer struct {
	path     string
	listener net.Listener

	mu      sync.RWMutex
	clients map[*client]struct{}
	ctrl    Controller

	closeOnce sync.Once
	done      chan struct{}
}

// NewSocketServer listens on path, replacing a stale socket file. An empty path
// uses DefaultSocketPath.
func NewSocketServer(path string) (*SocketServer, error) {
	if path == "" {
		if config.DefaultConfigDir() == "" {
			return nil, fmt.Errorf("failed to get home directory")
		}
		path = DefaultSocketPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return &SocketServer{
		path:     path,
		listener: listener,
		clients:  make(map[*client]struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (s *SocketServer) Path() string {
	return s.path
}

// Start accepts connections until ctx is done or Close is called. Commands are
// answered from ctrl.
func (s *SocketServer) Start(ctx context.Context, ctrl Controller) {
	s.mu.Lock()
	s.ctrl = ctrl
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	go s.acceptLoop()
}

func (s *SocketServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Debug().Err(err).Msg("socket accept failed")
			continue
		}

		c := &client{conn: conn}
		s.mu.Lock()
		s.clients[c] = struct{}{}
		s.mu.Unlock()

		go s.handleClient(c)
	}
}

func (s *SocketServer) handleClient(c *client) {
	defer s.drop(c)

	if err := s.reply(c, Message{Type: MessageWelcome, Version: config.Version}); err != nil {
		return
	}

	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		cmd := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if cmd == "" {
			continue
		}
		if err := s.reply(c, s.execute(cmd)); err != nil {
			return
		}
	}
}

func (s *SocketServer) execute(cmd string) Message {
	s.mu.RLock()
	ctrl := s.ctrl
	s.mu.RUnlock()
	if ctrl == nil {
		return Message{Type: MessageError, Error: "not ready"}
	}

	switch cmd {
	case CommandStatus:
		st := ctrl.Snapshot()
		return Message{Type: MessageStatus, Status: &st}
	case CommandClear:
		cleared := ctrl.ClearNotification()
		log.Debug().Bool("cleared", cleared).Msg("clear requested over socket")
		return Message{Type: MessageCleared, Cleared: cleared}
	default:
		return Message{Type: MessageError, Error: fmt.Sprintf("unknown command %q", cmd)}
	}
}

func (s *SocketServer) reply(c *client, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.send(append(data, '\n'))
}

func (s *SocketServer) drop(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.conn.Close()
}

// Broadcast writes m to every client. Clients that cannot keep up are dropped.
func (s *SocketServer) Broadcast(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(data); err != nil {
			s.drop(c)
		}
	}
}

// BroadcastUpdate pushes a watcher update.
func (s *SocketServer) BroadcastUpdate(u monitor.Update) {
	st := u.Status
	s.Broadcast(Message{Type: MessageUpdate, Kind: u.Kind.String(), Status: &st})
}

// BroadcastEvent pushes an event.
func (s *SocketServer) BroadcastEvent(e *notify.Event) {
	s.Broadcast(Message{Type: MessageEvent, Event: e})
}

func (s *SocketServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects clients, stops listening and removes the socket file.
func (s *SocketServer) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.listener.Close()

		s.mu.Lock()
		for c := range s.clients {
			c.conn.Close()
		}
		s.clients = make(map[*client]struct{})
		s.mu.Unlock()

		os.Remove(s.path)
	})
	return nil
}

// SocketNotifier forwards notifications and events to socket clients.
type SocketNotifier struct {
	server *SocketServer
}

func NewSocketNotifier(server *SocketServer) *SocketNotifier {
	return &SocketNotifier{server: server}
}

func (s *SocketNotifier) Name() string {
	return "socket"
}

func (s *SocketNotifier) Send(_ context.Context, n *notify.Notification) error {
	s.server.BroadcastEvent(notify.NewEventFromNotification(n))
	return nil
}

func (s *SocketNotifier) SendEvent(_ context.Context, e *notify.Event) error {
	s.server.BroadcastEvent(e)
	return nil
}

// Request dials the socket at path, sends cmd and returns the reply.
// Broadcasts that arrive first are skipped.
func Request(ctx context.Context, path, cmd string) (Message, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return Message{}, fmt.Errorf("failed to connect to %s: %w", path, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
		return Message{}, fmt.Errorf("failed to send command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var m Message
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			return Message{}, fmt.Errorf("bad reply: %w", err)
		}
		switch m.Type {
		case MessageStatus, MessageCleared:
			return m, nil
		case MessageError:
			return m, errors.New(m.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		return Message{}, fmt.Errorf("failed to read reply: %w", err)
	}
	return Message{}, fmt.Errorf("connection closed before reply")
}
