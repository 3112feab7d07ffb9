// Package prefs persists user preferences (sound choice and volume) as a small
// key-value YAML file.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"claudebell/internal/config"
	"claudebell/internal/sound"
)

// Known keys.
const (
	KeySound  = "sound"
	KeyVolume = "volume"
)

// ErrBadValue is returned by Set for values that are neither strings nor numbers.
var ErrBadValue = errors.New("preference values must be strings or numbers")

// Store is a key-value store of string or number values.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
}

// FileStore is a Store backed by a YAML file. Every Set rewrites the file.
type FileStore struct {
	fs     afero.Fs
	path   string
	mu     sync.Mutex
	values map[string]any
}

// DefaultPath returns ~/.claudebell/prefs.yaml.
func DefaultPath() string {
	dir := config.DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "prefs.yaml")
}

// Open loads the store at path. A missing file yields an empty store. A nil fs
// uses the OS filesystem.
func Open(fs afero.Fs, path string) (*FileStore, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if path == "" {
		path = DefaultPath()
	}

	s := &FileStore{fs: fs, path: path, values: make(map[string]any)}

	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prefs: %w", err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid prefs %s: %w", path, err)
	}
	for k, v := range raw {
		if nv, ok := normalize(v); ok {
			s.values[k] = nv
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key string, value any) error {
	v, ok := normalize(value)
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrBadValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = v
	if err := s.save(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *FileStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *FileStore) save() error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create prefs directory: %w", err)
	}
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to marshal prefs: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	return nil
}

// normalize maps supported values to string or float64.
func normalize(v any) (any, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return nil, false
}

// ParseValue converts a command-line argument into a store value: numbers
// become float64, anything else stays a string.
func ParseValue(s string) any {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// String returns the string stored under key, or def.
func String(s Store, key, def string) string {
	if v, ok := s.Get(key); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return def
}

// Number returns the number stored under key, or def.
func Number(s Store, key string, def float64) float64 {
	if v, ok := s.Get(key); ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

// ApplySound overrides sc with the stored sound name and volume. Unknown sound
// names and out-of-range volumes are normalized.
func ApplySound(s Store, sc *config.SoundConfig) {
	if name := String(s, KeySound, ""); name != "" {
		sc.Name = sound.Resolve(name)
	}
	if _, ok := s.Get(KeyVolume); ok {
		sc.Volume = sound.ClampVolume(Number(s, KeyVolume, sc.Volume))
	}
}
