// Package sound plays the alert sound.
package sound

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/gen2brain/beeep"
)

// Sounds lists the selectable alert sounds, named after the macOS system sounds.
var Sounds = []string{
	"Glass", "Ping", "Pop", "Purr", "Tink",
	"Blow", "Funk", "Hero", "Morse", "Submarine",
}

const (
	DefaultSound  = "Glass"
	DefaultVolume = 0.5
)

// Player plays a named sound at a volume in [0, 1]. Play must not block on
// playback.
type Player interface {
	Play(name string, volume float64) error
}

// Resolve returns the canonical spelling of name, or DefaultSound if unknown.
func Resolve(name string) string {
	for _, s := range Sounds {
		if strings.EqualFold(s, name) {
			return s
		}
	}
	return DefaultSound
}

// Known reports whether name is one of Sounds.
func Known(name string) bool {
	for _, s := range Sounds {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// ClampVolume limits v to [0, 1].
func ClampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

const (
	macSoundDir       = "/System/Library/Sounds"
	freedesktopSounds = "/usr/share/sounds/freedesktop/stereo"
	paplayMaxVolume   = 65536
)

// freedesktop stand-ins for the macOS sound names.
var linuxSounds = map[string]string{
	"Glass":     "complete.oga",
	"Ping":      "message.oga",
	"Pop":       "bell.oga",
	"Purr":      "message-new-instant.oga",
	"Tink":      "dialog-information.oga",
	"Blow":      "dialog-warning.oga",
	"Funk":      "suspend-error.oga",
	"Hero":      "service-login.oga",
	"Morse":     "audio-channel-front-center.oga",
	"Submarine": "power-plug.oga",
}

// CommandPlayer plays sounds with the platform's audio command: afplay on
// macOS, paplay on Linux. Without one it falls back to a beep.
type CommandPlayer struct {
	goos     string
	lookPath func(file string) (string, error)
	exists   func(path string) bool
	start    func(cmd *exec.Cmd) error
	beep     func() error
}

// NewCommandPlayer creates a player for the running OS.
func NewCommandPlayer() *CommandPlayer {
	return &CommandPlayer{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		start: startDetached,
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
	}
}

// startDetached starts cmd and reaps it in the background.
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// Command builds the playback command for name and volume. It returns nil when
// the platform has no usable player.
func (p *CommandPlayer) Command(name string, volume float64) *exec.Cmd {
	name = Resolve(name)
	volume = ClampVolume(volume)

	switch p.goos {
	case "darwin":
		path := filepath.Join(macSoundDir, name+".aiff")
		return exec.Command("afplay", "-v", strconv.FormatFloat(volume, 'f', 2, 64), path)

	case "linux":
		bin, err := p.lookPath("paplay")
		if err != nil {
			return nil
		}
		path := filepath.Join(freedesktopSounds, linuxSounds[name])
		if !p.exists(path) {
			return nil
		}
		vol := strconv.Itoa(int(volume * paplayMaxVolume))
		return exec.Command(bin, "--volume="+vol, path)
	}
	return nil
}

// Play implements Player. Volume 0 is silent.
func (p *CommandPlayer) Play(name string, volume float64) error {
	if ClampVolume(volume) == 0 {
		return nil
	}

	cmd := p.Command(name, volume)
	if cmd == nil {
		if err := p.beep(); err != nil {
			return fmt.Errorf("beep: %w", err)
		}
		return nil
	}
	if err := p.start(cmd); err != nil {
		return fmt.Errorf("play %s: %w", name, err)
	}
	return nil
}

// NopPlayer plays nothing.
type NopPlayer struct{}

func (NopPlayer) Play(string, float64) error { return nil }
