// Package wrap runs the agent CLI under a pseudo-terminal while claudebell
// watches its session logs.
package wrap

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"claudebell/internal/log"
)

const drainTimeout = 500 * time.Millisecond

// PTY runs one command on a pseudo-terminal wired to the caller's terminal.
type PTY struct {
	// Stdin is forwarded to the command. When it is a terminal it is put in
	// raw mode and its size follows SIGWINCH. Nil sends no input.
	Stdin *os.File
	// Stdout receives everything the command writes.
	Stdout io.Writer

	cmd      *exec.Cmd
	ptmx     *os.File
	oldState *term.State
	winch    chan os.Signal
	drained  chan struct{}
}

func NewPTY(name string, args ...string) *PTY {
	return &PTY{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		cmd:    exec.Command(name, args...),
	}
}

// Start launches the command and begins copying input and output.
func (p *PTY) Start() error {
	ptmx, err := pty.Start(p.cmd)
	if err != nil {
		return err
	}
	p.ptmx = ptmx

	if p.Stdin != nil && term.IsTerminal(int(p.Stdin.Fd())) {
		p.winch = make(chan os.Signal, 1)
		signal.Notify(p.winch, syscall.SIGWINCH)
		go func() {
			for range p.winch {
				if err := pty.InheritSize(p.Stdin, ptmx); err != nil {
					log.Debug().Err(err).Msg("resize pty")
				}
			}
		}()
		p.winch <- syscall.SIGWINCH

		state, err := term.MakeRaw(int(p.Stdin.Fd()))
		if err != nil {
			log.Debug().Err(err).Msg("raw mode unavailable")
		} else {
			p.oldState = state
		}
	}

	if p.Stdin != nil {
		go io.Copy(ptmx, p.Stdin)
	}

	p.drained = make(chan struct{})
	go func() {
		defer close(p.drained)
		out := p.Stdout
		if out == nil {
			out = io.Discard
		}
		io.Copy(out, ptmx)
	}()
	return nil
}

// Signal forwards sig to the command.
func (p *PTY) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return errors.New("command not started")
	}
	return p.cmd.Process.Signal(sig)
}

// Wait blocks until the command exits and returns its exit code. Output still
// buffered in the pty is flushed to Stdout first.
func (p *PTY) Wait() (int, error) {
	err := p.cmd.Wait()

	select {
	case <-p.drained:
	case <-time.After(drainTimeout):
	}
	p.Close()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

// Close restores the terminal and releases the pty. It is safe to call twice.
func (p *PTY) Close() {
	if p.winch != nil {
		signal.Stop(p.winch)
		close(p.winch)
		p.winch = nil
	}
	if p.oldState != nil {
		term.Restore(int(p.Stdin.Fd()), p.oldState)
		p.oldState = nil
	}
	if p.ptmx != nil {
		p.ptmx.Close()
		p.ptmx = nil
	}
}
