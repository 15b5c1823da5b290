// Package journal persists observed change events so they can be inspected
// after the fact with `dirwatch log` or the control server.
//
// Two backends are available, chosen by file extension: a JSON-lines file
// guarded by an advisory lock, and a SQLite database in WAL mode for
// journals that are queried often.
package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
)

const dirMode = 0o750

// Entry is one journaled event.
type Entry struct {
	Timestamp time.Time     `json:"timestamp"`
	ID        uint64        `json:"id"`
	Flags     fsevent.Flags `json:"flags"`
	Kinds     []string      `json:"kinds"`
	Path      string        `json:"path"`
}

// NewEntry stamps ev with the time it was observed.
func NewEntry(ev fsevent.ChangeEvent, at time.Time) Entry {
	return Entry{
		Timestamp: at.UTC(),
		ID:        ev.ID,
		Flags:     ev.Flags,
		Kinds:     ev.Flags.Names(),
		Path:      ev.Path,
	}
}

// Store is an append-only, size-bounded event journal. Implementations are
// safe for concurrent use.
type Store interface {
	// Append records ev, dropping the oldest entries beyond the bound.
	Append(ctx context.Context, ev fsevent.ChangeEvent) error
	// Recent returns up to n of the newest entries, oldest first. n <= 0
	// returns nil.
	Recent(ctx context.Context, n int) ([]Entry, error)
	Close() error
}

// Open opens the journal at path, creating it and its directory if needed.
// Paths ending in .db or .sqlite use SQLite; anything else is JSON lines.
// maxEntries <= 0 keeps the journal unbounded.
func Open(path string, maxEntries int) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path, maxEntries)
	default:
		return OpenFile(path, maxEntries)
	}
}

var now = time.Now
