package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// StdoutNotifier prints notifications to a writer, stdout by default.
type StdoutNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdoutNotifier creates a notifier writing to out, or os.Stdout if nil.
func NewStdoutNotifier(out io.Writer) *StdoutNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &StdoutNotifier{out: out}
}

func (s *StdoutNotifier) Name() string {
	return "stdout"
}

func (s *StdoutNotifier) Send(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := n.Time.Format("15:04:05")
	header := n.Title
	if n.Project != "" {
		header += " (" + n.Project + ")"
	}

	if n.Agent != "" {
		fmt.Fprintf(s.out, "[%s] %s | %s\n", timestamp, n.Agent, header)
	} else {
		fmt.Fprintf(s.out, "[%s] %s\n", timestamp, header)
	}

	if n.Message != "" {
		fmt.Fprintf(s.out, "  %s\n", n.Message)
	}

	if n.Snippet != "" {
		fmt.Fprintln(s.out, "  ---")
		for _, line := range strings.Split(strings.TrimRight(n.Snippet, "\n"), "\n") {
			fmt.Fprintf(s.out, "  %s\n", line)
		}
		fmt.Fprintln(s.out, "  ---")
	}

	_, err := fmt.Fprintln(s.out)
	return err
}
