package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"claudebell/internal/monitor"
)

const followInterval = 200 * time.Millisecond

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd %dh", int(d.Hours()/24), int(d.Hours())%24)
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	since := time.Since(t)
	switch {
	case since < time.Minute:
		return "just now"
	case since < time.Hour:
		return fmt.Sprintf("%dm ago", int(since.Minutes()))
	case since < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(since.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(since.Hours()/24))
}

func formatBytes(b int64) string {
	return monitor.HumanBytes(b)
}

// tailFile writes the last n lines of path to w.
func tailFile(w io.Writer, path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if n <= 0 {
		return nil
	}
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	for _, line := range ring {
		fmt.Fprintln(w, line)
	}
	return scanner.Err()
}

// followFile copies lines appended to path to w until ctx is done.
func followFile(ctx context.Context, w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	reader := bufio.NewReader(f)
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				io.WriteString(w, line)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
