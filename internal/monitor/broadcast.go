package monitor

import (
	"sync"
	"time"
)

// UpdateKind tags what an Update reports.
type UpdateKind int

const (
	UpdateStatus  UpdateKind = iota // status changed
	UpdateAlert                     // notification flag set, Alert is non-nil
	UpdateCleared                   // notification flag cleared
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateAlert:
		return "alert"
	case UpdateCleared:
		return "cleared"
	default:
		return "status"
	}
}

// Status is the observable watcher state.
type Status struct {
	State        ActivityState `json:"state"`
	Since        time.Time     `json:"since"`
	Notified     bool          `json:"notified"`
	CurrentFile  string        `json:"current_file,omitempty"`
	Project      string        `json:"project,omitempty"`
	AgentRunning bool          `json:"agent_running"`
	LastText     string        `json:"last_text,omitempty"`
}

func (s Status) equal(o Status) bool {
	return s.State == o.State &&
		s.Since.Equal(o.Since) &&
		s.Notified == o.Notified &&
		s.CurrentFile == o.CurrentFile &&
		s.Project == o.Project &&
		s.AgentRunning == o.AgentRunning &&
		s.LastText == o.LastText
}

// Update is delivered to subscribers.
type Update struct {
	Kind   UpdateKind
	Status Status
	Alert  *Alert
}

// Broadcaster fans Updates out to subscribers. Slow subscribers lose updates
// rather than block the publisher.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Update
	next   int
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Update)}
}

// Subscribe returns a channel of updates and a function that unsubscribes and
// closes it. buf < 1 is treated as 1.
func (b *Broadcaster) Subscribe(buf int) (<-chan Update, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Update, buf)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers u to every subscriber with room and returns how many
// received it.
func (b *Broadcaster) Publish(u Update) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- u:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later Subscribe calls get a closed
// channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
