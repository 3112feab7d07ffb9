package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SetupWebhookTester checks a Slack webhook URL.
type SetupWebhookTester func(webhook string) error

// SetupOptions configures the setup wizard.
type SetupOptions struct {
	In          io.Reader
	Out         io.Writer
	Path        string   // where to save, DefaultConfigPath if empty
	Sounds      []string // selectable sound names
	TestWebhook SetupWebhookTester
	PlaySound   func(name string, volume float64) // optional preview
}

// SetupWizard asks for notification, sound and integration settings and saves
// the result. Empty answers keep the defaults.
func SetupWizard(opts SetupOptions) (*Config, error) {
	w := &wizard{
		in:  bufio.NewReader(opts.In),
		out: opts.Out,
	}
	cfg := DefaultConfig()

	w.printf("\nWelcome to claudebell %s setup!\n\n", Version)

	w.setupNotification(cfg, opts.TestWebhook)
	w.setupSound(cfg, opts.Sounds, opts.PlaySound)
	w.setupIntegrations(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	path := opts.Path
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := Save(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	w.printf("\nConfiguration saved to %s\n", path)
	w.printf("Run 'claudebell' to start watching, or 'claudebell start' for the background daemon.\n\n")
	return cfg, nil
}

type wizard struct {
	in  *bufio.Reader
	out io.Writer
}

func (w *wizard) printf(format string, args ...any) {
	fmt.Fprintf(w.out, format, args...)
}

func (w *wizard) setupNotification(cfg *Config, testWebhook SetupWebhookTester) {
	w.printf("[1/3] Where should alerts go?\n")
	w.printf("  1. Desktop notification (default)\n")
	w.printf("  2. Slack webhook\n")
	w.printf("  3. Stdout\n")
	w.printf("  4. Sound only\n\n")

	switch w.promptChoice("Choice", 1, 4) {
	case 2:
		cfg.Notify.Type = NotifySlack
		webhook := w.promptString("Enter Slack webhook URL")
		cfg.Notify.Slack.Webhook = webhook
		if webhook == "" {
			w.printf("  No webhook given, using desktop notifications.\n")
			cfg.Notify.Type = NotifyDesktop
			break
		}
		if testWebhook != nil {
			w.printf("Testing webhook... ")
			if err := testWebhook(webhook); err != nil {
				w.printf("FAILED\n  Error: %v\n  You can edit the webhook URL later in the config file.\n", err)
			} else {
				w.printf("Success!\n")
			}
		}
	case 3:
		cfg.Notify.Type = NotifyStdout
	case 4:
		cfg.Notify.Type = NotifyNone
	default:
		cfg.Notify.Type = NotifyDesktop
	}
	w.printf("\n")
}

func (w *wizard) setupSound(cfg *Config, sounds []string, play func(string, float64)) {
	w.printf("[2/3] Alert sound\n")
	w.printf("  0. No sound\n")
	for i, name := range sounds {
		w.printf("  %d. %s\n", i+1, name)
	}
	w.printf("\n")

	choice := w.promptChoice("Choice (empty keeps "+cfg.Sound.Name+")", 0, len(sounds))
	switch {
	case choice < 0:
	case choice == 0:
		cfg.Sound.Enabled = false
	default:
		cfg.Sound.Name = sounds[choice-1]
	}

	if cfg.Sound.Enabled {
		if v, ok := w.promptVolume(cfg.Sound.Volume); ok {
			cfg.Sound.Volume = v
		}
		if play != nil {
			play(cfg.Sound.Name, cfg.Sound.Volume)
		}
	}
	w.printf("\n")
}

func (w *wizard) setupIntegrations(cfg *Config) {
	w.printf("[3/3] Integrations\n")
	cfg.Daemon.EventFile = w.promptYesNo("Write events to ~/.claudebell/events.jsonl", cfg.Daemon.EventFile)
	cfg.Daemon.Socket = w.promptYesNo("Enable status socket (needed by 'claudebell status' and 'clear')", cfg.Daemon.Socket)
}

// promptChoice returns -1 for an empty answer.
func (w *wizard) promptChoice(prompt string, min, max int) int {
	for {
		w.printf("%s [%d-%d]: ", prompt, min, max)
		input, err := w.in.ReadString('\n')
		input = strings.TrimSpace(input)

		if input == "" {
			return -1
		}

		choice, convErr := strconv.Atoi(input)
		if convErr == nil && choice >= min && choice <= max {
			return choice
		}
		w.printf("  Please enter a number between %d and %d\n", min, max)
		if err != nil {
			return -1
		}
	}
}

func (w *wizard) promptVolume(current float64) (float64, bool) {
	for {
		w.printf("Volume 0-100 [%d]: ", int(current*100+0.5))
		input, err := w.in.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			return 0, false
		}
		n, convErr := strconv.Atoi(input)
		if convErr == nil && n >= 0 && n <= 100 {
			return float64(n) / 100, true
		}
		w.printf("  Please enter a number between 0 and 100\n")
		if err != nil {
			return 0, false
		}
	}
}

func (w *wizard) promptYesNo(prompt string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	w.printf("%s [%s]: ", prompt, hint)
	input, _ := w.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

func (w *wizard) promptString(prompt string) string {
	w.printf("%s: ", prompt)
	input, _ := w.in.ReadString('\n')
	return strings.TrimSpace(input)
}
