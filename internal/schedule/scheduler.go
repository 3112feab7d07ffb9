// Package schedule provides named, cancelable delayed fires.
//
// Timer callbacks never touch caller state. They post a Fire onto a channel
// and the owning loop calls Claim to find out whether the fire is still live.
// A fire whose handle was canceled or superseded is rejected by Claim, so a
// late delivery is always a no-op.
package schedule

import (
	"sync"
	"time"
)

// Handle identifies one scheduled instance of a named timer.
type Handle struct {
	Name  string
	Token uint64
}

// IsZero reports whether h was never returned by Schedule.
func (h Handle) IsZero() bool {
	return h.Token == 0
}

// Fire is delivered on Fires() when a timer's delay elapses.
type Fire struct {
	Name  string
	Token uint64
	At    time.Time
}

type pending struct {
	token uint64
	timer Timer
	delay time.Duration
	armed time.Time
}

// Scheduler keeps at most one pending instance per timer name.
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	next    uint64
	pending map[string]*pending
	closed  bool

	fires chan Fire
	done  chan struct{}
}

// New creates a scheduler driven by clock. A nil clock uses wall time.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		clock:   clock,
		pending: make(map[string]*pending),
		fires:   make(chan Fire, 16),
		done:    make(chan struct{}),
	}
}

// Clock returns the clock the scheduler runs on.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Fires returns the channel fired timers are posted to.
func (s *Scheduler) Fires() <-chan Fire {
	return s.fires
}

// Schedule arms the named timer to fire after delay. Any pending instance of
// the same name is canceled first.
func (s *Scheduler) Schedule(name string, delay time.Duration) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Handle{}
	}

	if p, ok := s.pending[name]; ok {
		p.timer.Stop()
		delete(s.pending, name)
	}

	s.next++
	token := s.next
	p := &pending{
		token: token,
		delay: delay,
		armed: s.clock.Now(),
	}
	s.pending[name] = p

	// The callback may run synchronously (ManualClock) so it must not take s.mu.
	p.timer = s.clock.AfterFunc(delay, func() {
		s.post(Fire{Name: name, Token: token, At: s.clock.Now()})
	})

	return Handle{Name: name, Token: token}
}

func (s *Scheduler) post(f Fire) {
	select {
	case s.fires <- f:
	case <-s.done:
	}
}

// Cancel stops h if it is still the pending instance of its timer.
// It returns false if h already fired, was superseded, or was canceled.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[h.Name]
	if !ok || p.token != h.Token {
		return false
	}
	p.timer.Stop()
	delete(s.pending, h.Name)
	return true
}

// CancelName stops whatever instance of the named timer is pending.
func (s *Scheduler) CancelName(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[name]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, name)
	return true
}

// Claim consumes f if it belongs to the live instance of its timer. Callers act
// on a fire only when Claim returns true.
func (s *Scheduler) Claim(f Fire) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[f.Name]
	if !ok || p.token != f.Token {
		return false
	}
	delete(s.pending, f.Name)
	return true
}

// Pending reports whether the named timer has a live instance.
func (s *Scheduler) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[name]
	return ok
}

// Delay returns the delay of the pending instance of name, if any.
func (s *Scheduler) Delay(name string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[name]
	if !ok {
		return 0, false
	}
	return p.delay, true
}

// Close cancels every pending timer and unblocks callbacks waiting to post.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for name, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, name)
	}
	close(s.done)
}
