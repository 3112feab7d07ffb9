package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"claudebell/internal/config"
	"claudebell/internal/daemon"
	"claudebell/internal/log"
	"claudebell/internal/monitor"
	"claudebell/internal/wrap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch sessions in the foreground",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var wrapCmd = &cobra.Command{
	Use:   "wrap -- <command> [args...]",
	Short: "Run the agent in this terminal with claudebell watching",
	Long: `Run the agent under a pseudo-terminal while claudebell watches its session
logs. claudebell exits with the agent's exit code.

  claudebell wrap -- claude --continue`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWrap,
}

func init() {
	watchCmd.Flags().BoolVar(&flagStdout, "stdout", false, "print notifications instead of using the configured destination")
	wrapCmd.Flags().SetInterspersed(false)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := config.DefaultConfigDir()
	background := daemon.IsDaemon()

	opts := log.Options{Level: cfg.Log.Level}
	if background {
		opts.Dir = log.Dir(dir)
	}
	closer, err := log.Setup(opts)
	if err != nil {
		return err
	}
	defer closer.Close()

	if background {
		if n, err := log.Cleanup(opts.Dir, cfg.Daemon.LogRetentionDays, time.Now()); err != nil {
			log.Warn().Err(err).Msg("log cleanup failed")
		} else if n > 0 {
			log.Info().Int("deleted", n).Msg("removed old log files")
		}
	}

	lock := daemon.NewLock(dir)
	if err := lock.TryLock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	svc, err := daemon.NewService(cfg, monitor.Options{})
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("config", configPath()).
		Str("notify", svc.Notifier().Name()).
		Str("socket", svc.SocketPath()).
		Bool("daemon", background).
		Msg("claudebell starting")

	if !background {
		agent := svc.Watcher().Agent()
		fmt.Println(styleBrand.Render("claudebell") + " " + styleVersion.Render(config.Version))
		fmt.Println(field("Watching", agent.ResolvedProjectsDir()))
		fmt.Println(field("Notify", svc.Notifier().Name()))
		fmt.Println(field("Sound", soundLabel(cfg)))
		fmt.Println(styleHint.Render("  Ctrl+C to stop"))
		fmt.Println()

		updates, cancel := svc.Watcher().Subscribe(32)
		defer cancel()
		go printUpdates(os.Stdout, updates)
	}

	err = svc.Run(ctx)
	log.Info().Msg("claudebell stopped")
	return err
}

// printUpdates shows state changes and alerts in the foreground terminal.
func printUpdates(w io.Writer, updates <-chan monitor.Update) {
	var last monitor.ActivityState
	var lastFile string
	for u := range updates {
		ts := styleHint.Render(time.Now().Format("15:04:05"))
		if u.Status.CurrentFile != lastFile {
			lastFile = u.Status.CurrentFile
			if lastFile == "" {
				fmt.Fprintf(w, "%s %s\n", ts, styleHint.Render("no active session"))
			} else {
				fmt.Fprintf(w, "%s session %s\n", ts, styleCommand.Render(u.Status.Project))
			}
		}

		switch u.Kind {
		case monitor.UpdateAlert:
			fmt.Fprintf(w, "%s %s %s\n", ts, styleWarning.Render("🔔"), alertLabel(u.Alert))
		case monitor.UpdateCleared:
			fmt.Fprintf(w, "%s %s\n", ts, styleHint.Render("notification cleared"))
		}

		if u.Status.State != last {
			last = u.Status.State
			fmt.Fprintf(w, "%s %s\n", ts, stateBadge(last))
		}
	}
}

func alertLabel(a *monitor.Alert) string {
	switch {
	case a == nil:
		return "alert"
	case a.Reason == monitor.AlertSilence:
		return "tool call pending, may need approval"
	case a.Question:
		return "asked a question"
	default:
		return "turn finished"
	}
}

func stateBadge(s monitor.ActivityState) string {
	switch s {
	case monitor.StateWorking:
		return badgeWorking.Render(s.String())
	case monitor.StateWaitingInput:
		return badgeWaiting.Render(s.String())
	default:
		return badgeIdle.Render(s.String())
	}
}

func soundLabel(cfg *config.Config) string {
	if !cfg.Sound.Enabled {
		return "off"
	}
	return fmt.Sprintf("%s at %.0f%%", cfg.Sound.Name, cfg.Sound.Volume*100)
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.DefaultConfigPath()
}

func runWrap(cmd *cobra.Command, args []string) error {
	code, err := wrapAgent(args)
	if err != nil {
		return err
	}
	os.Exit(code)
	return nil
}

// wrapAgent runs args under a pty. Logs go to the log file so they do not
// garble the agent's screen. If another monitor already holds the lock the
// agent runs unwatched.
func wrapAgent(args []string) (int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return 1, err
	}

	dir := config.DefaultConfigDir()
	closer, err := log.Setup(log.Options{Level: cfg.Log.Level, Dir: log.Dir(dir)})
	if err != nil {
		return 1, err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	var mon wrap.Monitor
	lock := daemon.NewLock(dir)
	switch err := lock.TryLock(); {
	case errors.Is(err, daemon.ErrLocked):
		fmt.Fprintln(os.Stderr, styleHint.Render("claudebell: "+err.Error()+", it will handle notifications"))
	case err != nil:
		return 1, fmt.Errorf("failed to acquire lock: %w", err)
	default:
		defer lock.Unlock()
		svc, err := daemon.NewService(cfg, monitor.Options{})
		if err != nil {
			return 1, err
		}
		defer svc.Close()
		mon = svc
	}

	log.Info().Strs("command", args).Bool("watching", mon != nil).Msg("wrapping agent")
	return wrap.NewRunner(mon).Run(ctx, args)
}
