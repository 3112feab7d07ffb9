package wrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"claudebell/internal/log"
)

// Monitor is run beside the wrapped agent until it exits.
type Monitor interface {
	Run(ctx context.Context) error
}

// Runner starts an agent under a pty with a monitor running alongside.
type Runner struct {
	monitor Monitor
	Stdin   *os.File
	Stdout  io.Writer
}

// NewRunner wires the runner to the process's terminal. A nil monitor runs the
// agent unwatched.
func NewRunner(m Monitor) *Runner {
	return &Runner{monitor: m, Stdin: os.Stdin, Stdout: os.Stdout}
}

// Run executes args and returns the agent's exit code. The monitor is canceled
// once the agent exits. Canceling ctx sends SIGTERM to the agent.
func (r *Runner) Run(ctx context.Context, args []string) (int, error) {
	if len(args) == 0 {
		return 1, fmt.Errorf("no command specified")
	}

	p := NewPTY(args[0], args[1:]...)
	p.Stdin = r.Stdin
	p.Stdout = r.Stdout
	if err := p.Start(); err != nil {
		return 1, fmt.Errorf("failed to start %s: %w", args[0], err)
	}
	defer p.Close()

	monCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()

	monDone := make(chan error, 1)
	if r.monitor != nil {
		go func() { monDone <- r.monitor.Run(monCtx) }()
	} else {
		monDone <- nil
	}

	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.Signal(syscall.SIGTERM)
		case <-exited:
		}
	}()

	code, err := p.Wait()
	close(exited)
	stopMonitor()

	if merr := <-monDone; merr != nil && !errors.Is(merr, context.Canceled) {
		log.Warn().Err(merr).Msg("monitor stopped with error")
	}
	log.Debug().Str("command", args[0]).Int("exit", code).Msg("wrapped command exited")
	return code, err
}
