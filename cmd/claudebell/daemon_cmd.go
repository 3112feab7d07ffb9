package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"claudebell/internal/config"
	"claudebell/internal/daemon"
	"claudebell/internal/log"
)

const socketTimeout = 2 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		started, err := daemon.NewDaemon(config.DefaultConfigDir()).Start(daemonArgs())
		if err != nil {
			return err
		}
		printStarted(started)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := daemon.NewDaemon(config.DefaultConfigDir()).Stop()
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Println(styleHint.Render("Daemon is not running."))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s Daemon stopped (was PID %d)\n", mark(true), pid)
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the background daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		started, err := daemon.NewDaemon(config.DefaultConfigDir()).Restart(daemonArgs())
		if err != nil {
			return err
		}
		printStarted(started)
		return nil
	},
}

func printStarted(s daemon.Started) {
	fmt.Printf("%s Daemon started (PID %d)\n", mark(true), s.PID)
	fmt.Println(field("Log", s.LogPath))
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitor status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := config.DefaultConfigDir()
	running, pid, uptime := daemon.NewDaemon(dir).Status()

	fmt.Println(styleBrand.Render("claudebell") + " status")
	fmt.Println()
	if !running {
		fmt.Println(field("Monitor", styleError.Render("stopped")))
		fmt.Println(styleHint.Render("  Start it with ") + styleCommand.Render("claudebell start"))
	} else {
		fmt.Println(field("Monitor", styleSuccess.Render("running")))
		fmt.Println(field("PID", fmt.Sprint(pid)))
		fmt.Println(field("Uptime", formatDuration(uptime)))

		ctx, cancel := context.WithTimeout(context.Background(), socketTimeout)
		defer cancel()
		m, err := daemon.Request(ctx, socketPath(cfg), daemon.CommandStatus)
		switch {
		case err != nil:
			fmt.Println(field("Socket", styleWarning.Render(err.Error())))
		case m.Status != nil:
			st := m.Status
			fmt.Println(field("State", stateBadge(st.State)+styleHint.Render(" since "+formatAge(st.Since))))
			fmt.Println(field("Alerted", yesNo(st.Notified)))
			fmt.Println(field("Agent", yesNo(st.AgentRunning)))
			if st.Project != "" {
				fmt.Println(field("Project", st.Project))
			}
			if st.CurrentFile != "" {
				fmt.Println(field("Session", st.CurrentFile))
			}
		}
	}

	logDir := log.Dir(dir)
	files, err := log.Files(logDir)
	if err == nil && len(files) > 0 {
		var total int64
		for _, f := range files {
			total += f.Size
		}
		fmt.Println()
		fmt.Println(field("Logs", fmt.Sprintf("%d file(s) in %s", len(files), logDir)))
		fmt.Println(field("Size", formatBytes(total)))
	}
	return nil
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Mark the current alert as seen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), socketTimeout)
		defer cancel()

		m, err := daemon.Request(ctx, socketPath(cfg), daemon.CommandClear)
		if err != nil {
			return fmt.Errorf("is claudebell running? %w", err)
		}
		if m.Cleared {
			fmt.Printf("%s Notification cleared\n", mark(true))
		} else {
			fmt.Println(styleHint.Render("Nothing to clear."))
		}
		return nil
	},
}

var (
	flagFollow bool
	flagLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the daemon log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logDir := log.Dir(config.DefaultConfigDir())
		files, err := log.Files(logDir)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no log files in %s", logDir)
		}
		path := files[0].Path

		if err := tailFile(os.Stdout, path, flagLines); err != nil {
			return err
		}
		if !flagFollow {
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintln(os.Stderr, styleHint.Render("Following "+path+" (Ctrl+C to stop)"))
		return followFile(ctx, os.Stdout, path)
	},
}

func init() {
	logsCmd.Flags().BoolVarP(&flagFollow, "follow", "f", false, "keep printing new lines")
	logsCmd.Flags().IntVarP(&flagLines, "lines", "n", 50, "number of lines to show")
}

func socketPath(cfg *config.Config) string {
	if cfg.Daemon.SocketPath != "" {
		return cfg.Daemon.SocketPath
	}
	return daemon.DefaultSocketPath()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
