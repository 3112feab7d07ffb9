package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"claudebell/internal/config"
	"claudebell/internal/detect"
	"claudebell/internal/log"
	"claudebell/internal/notify"
	"claudebell/internal/schedule"
	"claudebell/internal/sound"
)

const (
	processCheckTimeout = 2 * time.Second
	notifyTimeout       = 10 * time.Second
)

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("watcher already running")

// Options supplies the watcher's collaborators. Nil fields get the real
// implementation.
type Options struct {
	Fs       afero.Fs
	Clock    schedule.Clock
	Checker  ProcessChecker
	Player   sound.Player
	Notifier notify.Notifier
}

// Watcher drives the session source, state machine and timers from a single
// loop. Snapshot, Subscribe and ClearNotification are safe from any goroutine.
type Watcher struct {
	cfg      *config.Config
	agent    Agent
	fs       afero.Fs
	source   *Source
	sched    *schedule.Scheduler
	machine  *Machine
	checker  ProcessChecker
	player   sound.Player
	notifier notify.Notifier
	bus      *Broadcaster

	mu      sync.RWMutex
	status  Status
	stopped chan struct{} // non-nil while Run is active

	running      atomic.Bool
	clearReq     chan chan bool
	procResult   chan bool
	procInFlight bool // loop-owned
	agentRunning bool // loop-owned
	fsw          *fsnotify.Watcher

	effects sync.WaitGroup
}

// AgentFromConfig returns the Claude agent with cfg's monitor overrides.
func AgentFromConfig(cfg *config.Config) Agent {
	a := Claude
	if cfg.Monitor.ProjectsDir != "" {
		a.ProjectsDir = cfg.Monitor.ProjectsDir
	}
	if cfg.Monitor.LogSuffix != "" {
		a.LogSuffix = cfg.Monitor.LogSuffix
	}
	if cfg.Monitor.ProcessName != "" {
		a.ProcessName = cfg.Monitor.ProcessName
	}
	return a
}

// NewWatcher wires a watcher for cfg.
func NewWatcher(cfg *config.Config, opts Options) *Watcher {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = schedule.RealClock{}
	}
	if opts.Checker == nil {
		opts.Checker = NewProcessTable()
	}
	if opts.Player == nil {
		if cfg.Sound.Enabled {
			opts.Player = sound.NewCommandPlayer()
		} else {
			opts.Player = sound.NopPlayer{}
		}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NopNotifier{}
	}

	agent := AgentFromConfig(cfg)
	sched := schedule.New(opts.Clock)

	w := &Watcher{
		cfg:   cfg,
		agent: agent,
		fs:    opts.Fs,
		source: NewSource(opts.Fs, SourceConfig{
			Root:       agent.ResolvedProjectsDir(),
			Suffix:     agent.LogSuffix,
			StaleAfter: cfg.StaleAfter(),
			Now:        opts.Clock.Now,
		}),
		sched: sched,
		machine: NewMachine(sched, Timings{
			TurnEndDelay:   cfg.TurnEndDelay(),
			QuestionDelay:  cfg.QuestionDelay(),
			SilenceTimeout: cfg.SilenceTimeout(),
		}),
		checker:    opts.Checker,
		player:     opts.Player,
		notifier:   opts.Notifier,
		bus:        NewBroadcaster(),
		clearReq:   make(chan chan bool),
		procResult: make(chan bool),
	}
	w.status = w.buildStatus()
	return w
}

// Close releases the scheduler and closes subscriber channels. Call it after
// Run has returned.
func (w *Watcher) Close() {
	w.sched.Close()
	w.bus.Close()
}

// Agent returns the watched agent.
func (w *Watcher) Agent() Agent {
	return w.agent
}

// Snapshot returns the last published status.
func (w *Watcher) Snapshot() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Subscribe registers an observer. Call cancel to stop receiving.
func (w *Watcher) Subscribe(buf int) (updates <-chan Update, cancel func()) {
	return w.bus.Subscribe(buf)
}

// Run polls until ctx is done. It returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.running.Store(false)

	stopped := make(chan struct{})
	w.mu.Lock()
	w.stopped = stopped
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.stopped = nil
		w.mu.Unlock()
		close(stopped)
	}()

	defer w.effects.Wait()
	defer w.machine.Stop()

	events, errs, closeFS := w.startFSWatch()
	defer closeFS()

	pollTicker := time.NewTicker(w.cfg.PollInterval())
	defer pollTicker.Stop()
	procTicker := time.NewTicker(w.cfg.ProcessInterval())
	defer procTicker.Stop()

	log.Info().
		Str("root", w.source.Root()).
		Dur("poll", w.cfg.PollInterval()).
		Bool("fsnotify", events != nil).
		Msg("watching sessions")

	w.poll()
	w.startProcessCheck(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-pollTicker.C:
			w.poll()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.handleFSEvent(ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Debug().Err(err).Msg("fsnotify error")

		case <-procTicker.C:
			w.startProcessCheck(ctx)

		case running := <-w.procResult:
			w.procInFlight = false
			if running != w.agentRunning {
				w.agentRunning = running
				log.Info().Bool("running", running).Str("process", w.agent.ProcessName).Msg("agent process")
				w.publishStatus()
			}

		case f := <-w.sched.Fires():
			w.handleFire(ctx, f)

		case reply := <-w.clearReq:
			reply <- w.clear()
		}
	}
}

// poll reads one batch from the source and feeds it to the machine.
func (w *Watcher) poll() {
	prev := w.source.CurrentFile()
	lines := w.source.Poll()
	if cur := w.source.CurrentFile(); cur != prev {
		if cur == "" {
			log.Info().Str("file", prev).Msg("session inactive")
		} else {
			log.Info().Str("file", cur).Str("project", ProjectName(cur)).Msg("tracking session")
		}
	}

	entries := make([]detect.Entry, 0, len(lines))
	for _, line := range lines {
		e, err := detect.DecodeString(line)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}

	for _, tr := range w.machine.HandleEntries(entries) {
		log.Debug().Stringer("from", tr.From).Stringer("to", tr.To).Msg("state")
	}
	w.publishStatus()
}

func (w *Watcher) handleFire(ctx context.Context, f schedule.Fire) {
	alert, tr, ok := w.machine.HandleFire(f)
	if !ok {
		return
	}
	if tr != nil {
		log.Debug().Stringer("from", tr.From).Stringer("to", tr.To).Msg("state")
	}
	log.Info().Stringer("reason", alert.Reason).Bool("question", alert.Question).Msg("alert")

	st, _ := w.refreshStatus()
	w.deliver(ctx, alert, st.Project)
	w.bus.Publish(Update{Kind: UpdateAlert, Status: st, Alert: &alert})
}

// deliver plays the sound and sends the notification without blocking the loop.
func (w *Watcher) deliver(ctx context.Context, a Alert, project string) {
	name, volume := w.cfg.Sound.Name, w.cfg.Sound.Volume
	w.spawn(func() {
		if err := w.player.Play(name, volume); err != nil {
			log.Debug().Err(err).Str("sound", name).Msg("sound failed")
		}
	})

	var n *notify.Notification
	if a.Reason == AlertSilence {
		n = notify.NewHoldingNotification(w.agent.DisplayName, project)
	} else {
		n = notify.NewAwaitingNotification(w.agent.DisplayName, project, a.Text, a.Question)
	}
	n.Time = a.At

	w.spawn(func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := w.notifier.Send(sendCtx, n); err != nil {
			log.Debug().Err(err).Str("notifier", w.notifier.Name()).Msg("notification failed")
		}
	})
}

func (w *Watcher) spawn(f func()) {
	w.effects.Add(1)
	go func() {
		defer w.effects.Done()
		f()
	}()
}

// ClearNotification clears the notification flag, as when the user has seen
// the alert. It reports whether the flag was set.
func (w *Watcher) ClearNotification() bool {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped == nil {
		return w.clear()
	}

	reply := make(chan bool, 1)
	select {
	case w.clearReq <- reply:
		return <-reply
	case <-stopped:
		return w.clear()
	}
}

func (w *Watcher) clear() bool {
	if !w.machine.ClearNotification() {
		return false
	}
	st, _ := w.refreshStatus()
	w.bus.Publish(Update{Kind: UpdateCleared, Status: st})
	return true
}

// startProcessCheck queries the process table off the loop. At most one
// check is in flight; a slow check reports false.
func (w *Watcher) startProcessCheck(ctx context.Context) {
	if w.procInFlight {
		return
	}
	w.procInFlight = true
	name := w.agent.ProcessName

	go func() {
		checkCtx, cancel := context.WithTimeout(ctx, processCheckTimeout)
		defer cancel()

		result := make(chan bool, 1)
		go func() { result <- w.checker.IsRunning(checkCtx, name) }()

		running := false
		select {
		case running = <-result:
		case <-checkCtx.Done():
			log.Debug().Str("process", name).Msg("process check timed out")
		}

		select {
		case w.procResult <- running:
		case <-ctx.Done():
		}
	}()
}

func (w *Watcher) buildStatus() Status {
	snap := w.machine.Snapshot()
	file := w.source.CurrentFile()
	return Status{
		State:        snap.State,
		Since:        snap.Since,
		Notified:     snap.Notified,
		CurrentFile:  file,
		Project:      ProjectName(file),
		AgentRunning: w.agentRunning,
		LastText:     snap.LastText,
	}
}

// refreshStatus recomputes the status and reports whether it changed.
func (w *Watcher) refreshStatus() (Status, bool) {
	st := w.buildStatus()
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := !st.equal(w.status)
	w.status = st
	return st, changed
}

func (w *Watcher) publishStatus() {
	if st, changed := w.refreshStatus(); changed {
		w.bus.Publish(Update{Kind: UpdateStatus, Status: st})
	}
}

// startFSWatch watches the projects tree so appends are read before the next
// tick. It is a no-op for non-OS filesystems or with force_polling.
func (w *Watcher) startFSWatch() (<-chan fsnotify.Event, <-chan error, func()) {
	nop := func() {}
	if w.cfg.Monitor.ForcePolling {
		return nil, nil, nop
	}
	if _, ok := w.fs.(*afero.OsFs); !ok {
		return nil, nil, nop
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("fsnotify unavailable, polling only")
		return nil, nil, nop
	}

	w.fsw = fsw
	if err := fsw.Add(w.source.Root()); err != nil {
		log.Debug().Err(err).Str("dir", w.source.Root()).Msg("cannot watch projects dir")
	}
	for _, dir := range w.source.ProjectDirs() {
		if err := fsw.Add(dir); err != nil {
			log.Debug().Err(err).Str("dir", dir).Msg("cannot watch project")
		}
	}
	return fsw.Events, fsw.Errors, func() {
		fsw.Close()
		w.fsw = nil
	}
}

// handleFSEvent polls early on session writes and follows new project dirs.
func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}

	if ev.Has(fsnotify.Create) && filepath.Dir(ev.Name) == filepath.Clean(w.source.Root()) {
		if info, err := w.fs.Stat(ev.Name); err == nil && info.IsDir() {
			w.addWatch(ev.Name)
			return
		}
	}

	if strings.HasSuffix(ev.Name, w.agent.LogSuffix) {
		w.poll()
	}
}

func (w *Watcher) addWatch(dir string) {
	if w.fsw == nil {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("cannot watch project")
	}
}
