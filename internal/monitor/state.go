package monitor

import (
	"fmt"
	"sync"
	"time"

	"claudebell/internal/detect"
	"claudebell/internal/schedule"
)

// ActivityState is what the agent appears to be doing.
type ActivityState int

const (
	StateIdle ActivityState = iota
	StateWorking
	StateWaitingInput
)

func (s ActivityState) String() string {
	switch s {
	case StateWorking:
		return "Working"
	case StateWaitingInput:
		return "Waiting for Input"
	default:
		return "Idle"
	}
}

// MarshalText encodes the state by name in JSON status payloads.
func (s ActivityState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ActivityState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Working":
		*s = StateWorking
	case "Waiting for Input":
		*s = StateWaitingInput
	case "Idle":
		*s = StateIdle
	default:
		return fmt.Errorf("unknown activity state %q", b)
	}
	return nil
}

// Logical timer names.
const (
	TimerNotify  = "notify"
	TimerSilence = "silence"
)

// Timings holds the machine's delays.
type Timings struct {
	TurnEndDelay   time.Duration // notify delay after a plain turn end
	QuestionDelay  time.Duration // notify delay when the last text asks something
	SilenceTimeout time.Duration // quiet period after a tool call before alerting
}

// DefaultTimings returns the stock delays.
func DefaultTimings() Timings {
	return Timings{
		TurnEndDelay:   500 * time.Millisecond,
		QuestionDelay:  3 * time.Second,
		SilenceTimeout: time.Second,
	}
}

// AlertReason says which path raised an alert.
type AlertReason int

const (
	// AlertTurnEnd means the notify timer survived after a turn ended.
	AlertTurnEnd AlertReason = iota
	// AlertSilence means a tool call was followed by silence, likely a permission prompt.
	AlertSilence
)

func (r AlertReason) String() string {
	if r == AlertSilence {
		return "silence"
	}
	return "turn_end"
}

// Alert is raised when the notification flag is set. The caller plays the
// sound and fans it out to notifiers.
type Alert struct {
	Reason   AlertReason
	Question bool   // last assistant text looked like a question
	Text     string // last assistant text
	At       time.Time
}

// Transition records one state change.
type Transition struct {
	From ActivityState
	To   ActivityState
	At   time.Time
}

// Snapshot is a read-only copy of machine state.
type Snapshot struct {
	State         ActivityState
	Since         time.Time
	Notified      bool
	LastText      string
	LastHadTool   bool
	NotifyPending bool
	SilenceArmed  bool
}

// Machine folds session entries and timer fires into an ActivityState.
//
// Mutations are expected from a single owner (the watcher loop). The lock only
// makes Snapshot safe to call from other goroutines.
type Machine struct {
	mu      sync.RWMutex
	sched   *schedule.Scheduler
	timings Timings

	state       ActivityState
	since       time.Time
	notified    bool
	lastText    string
	lastHadTool bool
	lastAsked   bool
}

// NewMachine creates an idle machine arming timers on sched.
func NewMachine(sched *schedule.Scheduler, timings Timings) *Machine {
	def := DefaultTimings()
	if timings.TurnEndDelay <= 0 {
		timings.TurnEndDelay = def.TurnEndDelay
	}
	if timings.QuestionDelay <= 0 {
		timings.QuestionDelay = def.QuestionDelay
	}
	if timings.SilenceTimeout <= 0 {
		timings.SilenceTimeout = def.SilenceTimeout
	}
	return &Machine{
		sched:   sched,
		timings: timings,
		state:   StateIdle,
		since:   sched.Clock().Now(),
	}
}

// HandleEntries processes one poll batch in arrival order and returns the
// resulting state changes. An empty batch is a no-op.
func (m *Machine) HandleEntries(entries []detect.Entry) []Transition {
	if len(entries) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var transitions []Transition

	// Fresh output means the agent is still active.
	m.sched.CancelName(TimerSilence)

	for _, e := range entries {
		switch e.Kind {
		case detect.KindUser:
			m.sched.CancelName(TimerNotify)
			m.notified = false
			m.lastHadTool = false
			transitions = m.setState(StateWorking, transitions)

		case detect.KindAssistant:
			if e.Text != "" {
				m.lastText = e.Text
			}
			m.lastHadTool = e.HasToolUse
			transitions = m.setState(StateWorking, transitions)

		case detect.KindSystem:
			if e.IsTurnEnd() {
				m.lastHadTool = false
				transitions = m.turnEnd(transitions)
			}
		}
	}

	if m.lastHadTool && m.state == StateWorking {
		m.sched.Schedule(TimerSilence, m.timings.SilenceTimeout)
	}

	return transitions
}

func (m *Machine) turnEnd(transitions []Transition) []Transition {
	m.lastAsked = detect.LooksLikeQuestion(m.lastText)
	transitions = m.setState(StateWaitingInput, transitions)

	delay := m.timings.TurnEndDelay
	if m.lastAsked {
		delay = m.timings.QuestionDelay
	}
	m.sched.Schedule(TimerNotify, delay)
	return transitions
}

// HandleFire applies a timer fire. It returns the alert to deliver and any
// state change. Fires that were canceled, superseded, or whose guard no longer
// holds return ok=false.
func (m *Machine) HandleFire(f schedule.Fire) (alert Alert, tr *Transition, ok bool) {
	if !m.sched.Claim(f) {
		return Alert{}, nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch f.Name {
	case TimerNotify:
		if m.state != StateWaitingInput {
			return Alert{}, nil, false
		}
		m.notified = true
		return m.alert(AlertTurnEnd, f.At), nil, true

	case TimerSilence:
		if m.state != StateWorking || !m.lastHadTool {
			return Alert{}, nil, false
		}
		if ts := m.setState(StateWaitingInput, nil); len(ts) == 1 {
			tr = &ts[0]
		}
		m.notified = true
		return m.alert(AlertSilence, f.At), tr, true
	}
	return Alert{}, nil, false
}

func (m *Machine) alert(reason AlertReason, at time.Time) Alert {
	return Alert{
		Reason:   reason,
		Question: reason == AlertTurnEnd && m.lastAsked,
		Text:     m.lastText,
		At:       at,
	}
}

// setState moves to next and appends a Transition if the state changed.
// Caller holds m.mu.
func (m *Machine) setState(next ActivityState, transitions []Transition) []Transition {
	if m.state == next {
		return transitions
	}
	now := m.sched.Clock().Now()
	transitions = append(transitions, Transition{From: m.state, To: next, At: now})
	m.state = next
	m.since = now
	return transitions
}

// ClearNotification clears the notification flag, as when the user looks at
// the status. It reports whether the flag was set.
func (m *Machine) ClearNotification() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.notified
	m.notified = false
	return was
}

// State returns the current activity state.
func (m *Machine) State() ActivityState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Notified reports whether the notification flag is set.
func (m *Machine) Notified() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notified
}

// Snapshot returns a copy of the machine state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:         m.state,
		Since:         m.since,
		Notified:      m.notified,
		LastText:      m.lastText,
		LastHadTool:   m.lastHadTool,
		NotifyPending: m.sched.Pending(TimerNotify),
		SilenceArmed:  m.sched.Pending(TimerSilence),
	}
}

// Stop cancels both timers.
func (m *Machine) Stop() {
	m.sched.CancelName(TimerNotify)
	m.sched.CancelName(TimerSilence)
}
