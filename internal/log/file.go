package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	filePrefix = "claudebell-"
	fileSuffix = ".log"
	dateLayout = "2006-01-02"

	// CurrentLink is the symlink pointing at today's log file.
	CurrentLink = "claudebell.log"
)

// Dir returns the log directory under the state directory base.
func Dir(base string) string {
	return filepath.Join(base, "logs")
}

// FilePath returns the dated log file for t in dir.
func FilePath(dir string, t time.Time) string {
	return filepath.Join(dir, filePrefix+t.Format(dateLayout)+fileSuffix)
}

// FileWriter appends to claudebell-YYYY-MM-DD.log in its directory, switching
// files when the date changes.
type FileWriter struct {
	mu   sync.Mutex
	dir  string
	file *os.File
	date string
	now  func() time.Time
}

// NewFileWriter creates dir if needed and opens today's file.
func NewFileWriter(dir string) (*FileWriter, error) {
	return newFileWriter(dir, time.Now)
}

func newFileWriter(dir string, now func() time.Time) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	w := &FileWriter{dir: dir, now: now}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// open opens or rotates the file for today. Caller holds mu or owns w.
func (w *FileWriter) open() error {
	now := w.now()
	today := now.Format(dateLayout)
	if w.file != nil && w.date == today {
		return nil
	}
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}

	path := FilePath(w.dir, now)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	w.file = f
	w.date = today

	link := filepath.Join(w.dir, CurrentLink)
	os.Remove(link)
	os.Symlink(filepath.Base(path), link)
	return nil
}

func (w *FileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.open(); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

// Path returns the file currently written to.
func (w *FileWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Name()
	}
	return filepath.Join(w.dir, CurrentLink)
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// FileInfo describes one dated log file.
type FileInfo struct {
	Name    string
	Path    string
	Date    time.Time
	Size    int64
	ModTime time.Time
}

// parseDate extracts the date from claudebell-YYYY-MM-DD.log.
func parseDate(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	date := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	t, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Files lists dated log files in dir, newest first. A missing dir is empty.
func Files(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var logs []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := parseDate(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		logs = append(logs, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Date:    date,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].Date.After(logs[j].Date) })
	return logs, nil
}

// Cleanup removes dated log files older than retentionDays relative to now.
// retentionDays <= 0 keeps everything.
func Cleanup(dir string, retentionDays int, now time.Time) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	logs, err := Files(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, l := range logs {
		if !l.Date.Before(cutoff) {
			continue
		}
		if err := os.Remove(l.Path); err != nil {
			Warn().Err(err).Str("file", l.Name).Msg("failed to remove old log")
			continue
		}
		deleted++
	}
	return deleted, nil
}
