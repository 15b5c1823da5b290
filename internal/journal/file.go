package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/twiced-technology-gmbh/dirwatch/internal/filelock"
	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
)

const fileMode = 0o600

// FileStore is a JSON-lines journal. Writers in other processes are
// coordinated through an advisory lock next to the file.
type FileStore struct {
	path       string
	maxEntries int

	mu sync.Mutex
	// lines approximates the file's entry count; truncation re-reads the
	// file, so writers in other processes only delay it.
	lines int
}

// OpenFile opens (or creates) a JSON-lines journal at path.
func OpenFile(path string, maxEntries int) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, fileMode) //nolint:gosec // journal path from trusted config
	if err != nil {
		return nil, fmt.Errorf("journal: open %q: %w", path, err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal: scan %q: %w", path, err)
	}
	return &FileStore{path: path, maxEntries: maxEntries, lines: n}, nil
}

// Path returns the journal file.
func (s *FileStore) Path() string { return s.path }

// Append writes one JSON line and truncates the oldest lines once the
// journal exceeds its bound.
func (s *FileStore) Append(_ context.Context, ev fsevent.ChangeEvent) error {
	data, err := json.Marshal(NewEntry(ev, now()))
	if err != nil {
		return fmt.Errorf("journal: marshal entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := filelock.Lock(filelock.LockPath(s.path))
	if err != nil {
		return fmt.Errorf("journal: lock: %w", err)
	}
	defer func() { _ = unlock() }()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode) //nolint:gosec // journal path from trusted config
	if err != nil {
		return fmt.Errorf("journal: open: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("journal: write entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	s.lines++

	if s.maxEntries > 0 && s.lines > s.maxEntries {
		n, err := truncate(s.path, s.maxEntries)
		if err != nil {
			return fmt.Errorf("journal: truncate: %w", err)
		}
		s.lines = n
	}
	return nil
}

// truncate replaces the file with one holding only its newest maxEntries
// lines and returns the number of lines kept. The replacement is written
// beside the journal and renamed over it, so readers never see a partial file.
func truncate(path string, maxEntries int) (int, error) {
	lines, err := readLines(path)
	if err != nil {
		return 0, err
	}
	if len(lines) <= maxEntries {
		return len(lines), nil
	}
	lines = lines[len(lines)-maxEntries:]

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		_, _ = w.WriteString(line)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Chmod(tmp.Name(), fileMode); err != nil {
		return 0, err
	}
	return len(lines), os.Rename(tmp.Name(), path)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // trusted path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// Recent returns up to n of the newest entries, oldest first. Lines that do
// not parse are skipped. It holds the journal lock while reading, so it never
// observes a writer midway through a line.
func (s *FileStore) Recent(_ context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	unlock, err := filelock.Lock(filelock.LockPath(s.path))
	if err != nil {
		return nil, fmt.Errorf("journal: lock: %w", err)
	}
	lines, err := readLines(s.path)
	_ = unlock()
	if err != nil {
		return nil, fmt.Errorf("journal: read: %w", err)
	}

	entries := make([]Entry, 0, min(n, len(lines)))
	for i := len(lines) - 1; i >= 0 && len(entries) < n; i-- {
		var e Entry
		if err := json.Unmarshal([]byte(lines[i]), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Close is a no-op; the file is opened per operation.
func (s *FileStore) Close() error { return nil }
