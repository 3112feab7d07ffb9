package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"claudebell/internal/config"
	"claudebell/internal/daemon"
	"claudebell/internal/monitor"
	"claudebell/internal/notify"
	"claudebell/internal/sound"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the installation and configuration",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Println(styleBrand.Render("claudebell") + " check")
	fmt.Println()

	path := configPath()
	if _, err := os.Stat(path); err != nil {
		fmt.Println(field("Config", mark(false)+" "+styleHint.Render(path+" (using defaults)")))
	} else {
		fmt.Println(field("Config", mark(true)+" "+path))
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(field("", styleError.Render(err.Error())))
		return err
	}

	agent := monitor.AgentFromConfig(cfg)
	root := agent.ResolvedProjectsDir()
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		fmt.Println(field("Projects", mark(false)+" "+root+styleHint.Render(" not found, has "+agent.DisplayName+" run yet?")))
	} else {
		fmt.Println(field("Projects", mark(true)+" "+root))
		if entry, ok := monitor.FindNewestLog(afero.NewOsFs(), root, agent.LogSuffix); ok {
			fmt.Println(field("Session", monitor.ProjectName(entry.Path)+styleHint.Render(" updated "+formatAge(entry.ModTime))))
		} else {
			fmt.Println(field("Session", styleHint.Render("no session logs yet")))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if info, ok := monitor.NewProcessTable().Find(ctx, agent.ProcessName); ok {
		fmt.Println(field("Process", mark(true)+" "+monitor.FormatProcInfo(info)))
	} else {
		fmt.Println(field("Process", styleHint.Render(agent.ProcessName+" is not running")))
	}

	switch {
	case !cfg.Sound.Enabled:
		fmt.Println(field("Sound", styleHint.Render("off")))
	case sound.NewCommandPlayer().Command(cfg.Sound.Name, cfg.Sound.Volume) == nil:
		fmt.Println(field("Sound", styleWarning.Render("no player found, falling back to a beep")))
	default:
		fmt.Println(field("Sound", mark(true)+" "+soundLabel(cfg)))
	}

	if n, err := notify.NewNotifier(cfg); err != nil {
		fmt.Println(field("Notify", mark(false)+" "+styleError.Render(err.Error())))
	} else {
		fmt.Println(field("Notify", mark(true)+" "+n.Name()))
	}

	if running, pid, _ := daemon.NewDaemon(config.DefaultConfigDir()).Status(); running {
		fmt.Println(field("Daemon", mark(true)+fmt.Sprintf(" running (PID %d)", pid)))
	} else {
		fmt.Println(field("Daemon", styleHint.Render("not running")))
	}
	return nil
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive configuration wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		player := sound.NewCommandPlayer()
		_, err := config.SetupWizard(config.SetupOptions{
			In:     os.Stdin,
			Out:    os.Stdout,
			Path:   flagConfig,
			Sounds: sound.Sounds,
			TestWebhook: func(url string) error {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return notify.NewSlackNotifier(url).TestWebhook(ctx)
			},
			PlaySound: func(name string, volume float64) {
				player.Play(name, volume)
			},
		})
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(styleBrand.Render("claudebell") + " " + styleVersion.Render(config.Version))
		fmt.Println(field("Platform", runtime.GOOS+"/"+runtime.GOARCH))
		fmt.Println(field("Go", runtime.Version()))
	},
}
