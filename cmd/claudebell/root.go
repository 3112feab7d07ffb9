package main

import (
	"github.com/spf13/cobra"

	"claudebell/internal/config"
	"claudebell/internal/log"
	"claudebell/internal/prefs"
)

var (
	flagConfig   string
	flagLogLevel string
	flagStdout   bool
)

var rootCmd = &cobra.Command{
	Use:   "claudebell",
	Short: "Ring a bell when Claude Code is waiting on you",
	Long: `claudebell watches Claude Code session logs and notifies you when the agent
finishes a turn, asks a question, or stalls on a tool call that needs approval.

Run without a subcommand to watch in the foreground.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.claudebell/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.Flags().BoolVar(&flagStdout, "stdout", false, "print notifications instead of using the configured destination")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(soundsCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(wrapCmd)
}

// loadConfig reads the config file and applies stored preferences and flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	if store, err := prefs.Open(nil, prefs.DefaultPath()); err != nil {
		log.Warn().Err(err).Msg("ignoring preferences")
	} else {
		prefs.ApplySound(store, &cfg.Sound)
	}

	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagStdout {
		cfg.Notify.Type = config.NotifyStdout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// daemonArgs are the arguments the background child is started with.
func daemonArgs() []string {
	args := []string{"watch"}
	if flagConfig != "" {
		args = append(args, "--config", flagConfig)
	}
	if flagLogLevel != "" {
		args = append(args, "--log-level", flagLogLevel)
	}
	return args
}
