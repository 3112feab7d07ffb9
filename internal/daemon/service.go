package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"claudebell/internal/config"
	"claudebell/internal/log"
	"claudebell/internal/monitor"
	"claudebell/internal/notify"
)

const eventTimeout = 10 * time.Second

// Service runs a watcher with the control socket and event relay attached.
// State changes and clears become events on every notifier that accepts them.
type Service struct {
	cfg      *config.Config
	watcher  *monitor.Watcher
	notifier notify.Notifier
	socket   *SocketServer
}

// NewService builds the notifier chain and the watcher for cfg. A socket that
// cannot be opened is logged and skipped. opts.Notifier, when set, replaces
// the configured chain.
func NewService(cfg *config.Config, opts monitor.Options) (*Service, error) {
	s := &Service{cfg: cfg}

	var extras []notify.Notifier
	if cfg.Daemon.Socket {
		server, err := NewSocketServer(cfg.Daemon.SocketPath)
		if err != nil {
			log.Warn().Err(err).Msg("control socket disabled")
		} else {
			s.socket = server
			extras = append(extras, NewSocketNotifier(server))
		}
	}

	if opts.Notifier == nil {
		n, err := notify.NewNotifier(cfg, extras...)
		if err != nil {
			s.closeSocket()
			return nil, err
		}
		opts.Notifier = n
	} else if len(extras) > 0 {
		opts.Notifier = notify.NewMultiNotifier(opts.Notifier, extras...)
	}
	s.notifier = opts.Notifier

	s.watcher = monitor.NewWatcher(cfg, opts)
	return s, nil
}

func (s *Service) Watcher() *monitor.Watcher {
	return s.watcher
}

func (s *Service) Notifier() notify.Notifier {
	return s.notifier
}

// SocketPath returns the control socket path, or "" without a socket.
func (s *Service) SocketPath() string {
	if s.socket == nil {
		return ""
	}
	return s.socket.Path()
}

// Run drives the watcher until ctx is done and returns its error.
func (s *Service) Run(ctx context.Context) error {
	updates, unsubscribe := s.watcher.Subscribe(64)

	if s.socket != nil {
		s.socket.Start(ctx, s.watcher)
	}

	s.emit(ctx, notify.NewEvent(notify.EventDaemonStart).
		WithAgent(s.watcher.Agent().DisplayName).
		WithMessage("claudebell started"))

	initial := s.watcher.Snapshot().State
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.relay(ctx, updates, initial)
	}()

	err := s.watcher.Run(ctx)
	unsubscribe()
	wg.Wait()

	s.emit(ctx, notify.NewEvent(notify.EventDaemonStop).
		WithAgent(s.watcher.Agent().DisplayName).
		WithMessage("claudebell stopping"))

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// relay turns watcher updates into socket pushes and state/cleared events.
func (s *Service) relay(ctx context.Context, updates <-chan monitor.Update, prev monitor.ActivityState) {
	for u := range updates {
		if s.socket != nil {
			s.socket.BroadcastUpdate(u)
		}

		switch u.Kind {
		case monitor.UpdateStatus, monitor.UpdateAlert:
			if u.Status.State == prev {
				continue
			}
			e := notify.NewEvent(notify.EventState).
				WithAgent(s.watcher.Agent().DisplayName).
				WithMessage(u.Status.State.String()).
				WithMetadata("from", prev.String()).
				WithMetadata("to", u.Status.State.String())
			e.Project = u.Status.Project
			prev = u.Status.State
			s.emit(ctx, e)

		case monitor.UpdateCleared:
			e := notify.NewEvent(notify.EventCleared).
				WithAgent(s.watcher.Agent().DisplayName)
			e.Project = u.Status.Project
			s.emit(ctx, e)
		}
	}
}

func (s *Service) emit(ctx context.Context, e *notify.Event) {
	sink, ok := s.notifier.(notify.EventSink)
	if !ok {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()
	if err := sink.SendEvent(sendCtx, e); err != nil {
		log.Debug().Err(err).Str("event", string(e.Event)).Msg("event not delivered")
	}
}

// Close releases the watcher, the socket and any notifier that holds files.
// Call it after Run has returned.
func (s *Service) Close() error {
	s.watcher.Close()
	s.closeSocket()
	if c, ok := s.notifier.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *Service) closeSocket() {
	if s.socket != nil {
		s.socket.Close()
	}
}
