package prefs

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"claudebell/internal/config"
)

const testPath = "/home/u/.claudebell/prefs.yaml"

func TestOpenMissing(t *testing.T) {
	s, err := Open(afero.NewMemMapFs(), testPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get(KeySound); ok {
		t.Error("expected empty store")
	}
	if len(s.Keys()) != 0 {
		t.Errorf("Keys = %v", s.Keys())
	}
}

func TestSetPersists(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := Open(fs, testPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(KeySound, "Ping"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(KeyVolume, 0.75); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(fs, testPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := String(reopened, KeySound, ""); got != "Ping" {
		t.Errorf("sound = %q", got)
	}
	if got := Number(reopened, KeyVolume, 0); got != 0.75 {
		t.Errorf("volume = %v", got)
	}
}

func TestIntegerVolume(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, testPath, []byte("volume: 1\nsound: Hero\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(fs, testPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := Number(s, KeyVolume, 0); got != 1 {
		t.Errorf("volume = %v, want 1", got)
	}
}

func TestSetRejectsBadValue(t *testing.T) {
	s, err := Open(afero.NewMemMapFs(), testPath)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Set("sound", []string{"Glass"})
	if !errors.Is(err, ErrBadValue) {
		t.Errorf("err = %v, want ErrBadValue", err)
	}
	if _, ok := s.Get("sound"); ok {
		t.Error("bad value stored")
	}
}

func TestSetRollsBackOnWriteFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := Open(fs, testPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(KeySound, "Pop"); err != nil {
		t.Fatal(err)
	}

	s.fs = afero.NewReadOnlyFs(fs)
	if err := s.Set(KeySound, "Tink"); err == nil {
		t.Fatal("expected write error")
	}
	if got := String(s, KeySound, ""); got != "Pop" {
		t.Errorf("sound = %q after failed write, want Pop", got)
	}
}

func TestMalformedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, testPath, []byte("sound: [oops"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(fs, testPath); err == nil {
		t.Error("expected error")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"Glass", "Glass"},
		{"0.3", 0.3},
		{" 1 ", 1.0},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseValue(tt.in); got != tt.want {
			t.Errorf("ParseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestApplySound(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		s, _ := Open(afero.NewMemMapFs(), testPath)
		s.Set(KeySound, "purr")
		s.Set(KeyVolume, 2.0)

		sc := config.DefaultConfig().Sound
		ApplySound(s, &sc)
		if sc.Name != "Purr" || sc.Volume != 1 {
			t.Errorf("sound = %+v", sc)
		}
	})

	t.Run("empty store keeps config", func(t *testing.T) {
		s, _ := Open(afero.NewMemMapFs(), testPath)
		sc := config.SoundConfig{Enabled: true, Name: "Funk", Volume: 0.2}
		ApplySound(s, &sc)
		if sc.Name != "Funk" || sc.Volume != 0.2 {
			t.Errorf("sound = %+v", sc)
		}
	})

	t.Run("unknown sound falls back", func(t *testing.T) {
		s, _ := Open(afero.NewMemMapFs(), testPath)
		s.Set(KeySound, "Kazoo")
		sc := config.DefaultConfig().Sound
		ApplySound(s, &sc)
		if sc.Name != "Glass" {
			t.Errorf("Name = %q", sc.Name)
		}
	})
}
