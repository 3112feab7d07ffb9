package monitor

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"claudebell/internal/util"
)

// DefaultStaleAfter is the session log age at which it is no longer treated as
// a live session.
const DefaultStaleAfter = 300 * time.Second

// DefaultLogSuffix selects session log files.
const DefaultLogSuffix = ".jsonl"

// Cursor is the read position in the tracked session log.
// Offset never exceeds the size of Path; both are zero when nothing is tracked.
type Cursor struct {
	Path   string
	Offset int64
}

// FileEntry is a candidate session log.
type FileEntry struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// SourceConfig controls where a Source looks for session logs.
type SourceConfig struct {
	Root       string           // directory holding one subdirectory per project
	Suffix     string           // log file suffix, DefaultLogSuffix if empty
	StaleAfter time.Duration    // DefaultStaleAfter if zero
	Now        func() time.Time // time.Now if nil
}

// Source yields lines appended to the newest session log since the last poll.
// It is not safe for concurrent use; the watcher loop owns it.
type Source struct {
	fs         afero.Fs
	root       string
	suffix     string
	staleAfter time.Duration
	now        func() time.Time

	cursor Cursor
}

// NewSource creates a Source reading through fs.
func NewSource(fs afero.Fs, cfg SourceConfig) *Source {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if cfg.Suffix == "" {
		cfg.Suffix = DefaultLogSuffix
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Source{
		fs:         fs,
		root:       cfg.Root,
		suffix:     cfg.Suffix,
		staleAfter: cfg.StaleAfter,
		now:        cfg.Now,
	}
}

// Root returns the projects directory being scanned.
func (s *Source) Root() string {
	return s.root
}

// Cursor returns the current read position.
func (s *Source) Cursor() Cursor {
	return s.cursor
}

// CurrentFile returns the tracked session log, or "" if none.
func (s *Source) CurrentFile() string {
	return s.cursor.Path
}

// Poll returns the lines appended to the active session log since the previous
// call. Every byte read is consumed, so a record caught mid-write comes back as
// a trailing fragment that will fail to decode. A newly selected file is read
// from its current end, so no history is replayed. Filesystem failures yield no
// lines and are retried on the next call.
func (s *Source) Poll() []string {
	newest, ok := s.Newest()
	if !ok {
		s.cursor = Cursor{}
		return nil
	}

	if newest.Path != s.cursor.Path {
		s.cursor = Cursor{Path: newest.Path, Offset: newest.Size}
		return nil
	}

	// Truncated or rewritten in place: resync to the end.
	if newest.Size < s.cursor.Offset {
		s.cursor.Offset = newest.Size
		return nil
	}
	if newest.Size == s.cursor.Offset {
		return nil
	}

	data, err := s.readFrom(newest.Path, s.cursor.Offset)
	if err != nil || len(data) == 0 {
		return nil
	}
	s.cursor.Offset += int64(len(data))

	return util.SplitLines(data)
}

func (s *Source) readFrom(path string, offset int64) ([]byte, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	return util.ReadRemaining(f)
}

// Newest returns the most recently modified session log under root, provided
// it is younger than the staleness cutoff.
func (s *Source) Newest() (FileEntry, bool) {
	newest, ok := FindNewestLog(s.fs, s.root, s.suffix)
	if !ok {
		return FileEntry{}, false
	}
	if s.now().Sub(newest.ModTime) >= s.staleAfter {
		return FileEntry{}, false
	}
	return newest, true
}

// ProjectDirs returns the root and every project subdirectory. The watcher
// registers these for change notifications.
func (s *Source) ProjectDirs() []string {
	dirs := []string{s.root}
	infos, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return dirs
	}
	for _, info := range infos {
		if info.IsDir() {
			dirs = append(dirs, filepath.Join(s.root, info.Name()))
		}
	}
	return dirs
}

// FindNewestLog scans root/<project>/*<suffix> and returns the file with the
// latest modification time. Unreadable directories and files are skipped.
func FindNewestLog(fs afero.Fs, root, suffix string) (FileEntry, bool) {
	projects, err := afero.ReadDir(fs, root)
	if err != nil {
		return FileEntry{}, false
	}

	var newest FileEntry
	found := false
	for _, project := range projects {
		if !project.IsDir() {
			continue
		}
		dir := filepath.Join(root, project.Name())
		files, err := afero.ReadDir(fs, dir)
		if err != nil {
			continue
		}
		for _, info := range files {
			if !isSessionLog(info, suffix) {
				continue
			}
			if !found || info.ModTime().After(newest.ModTime) {
				newest = FileEntry{
					Path:    filepath.Join(dir, info.Name()),
					ModTime: info.ModTime(),
					Size:    info.Size(),
				}
				found = true
			}
		}
	}
	return newest, found
}

func isSessionLog(info os.FileInfo, suffix string) bool {
	return !info.IsDir() && strings.HasSuffix(info.Name(), suffix)
}
