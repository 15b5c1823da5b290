package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver with database/sql

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
)

// SQLiteStore is a WAL-mode SQLite journal.
type SQLiteStore struct {
	db         *sql.DB
	maxEntries int
}

const ddl = `
CREATE TABLE IF NOT EXISTS events (
    seq      INTEGER PRIMARY KEY AUTOINCREMENT,
    ts       TEXT    NOT NULL,
    event_id INTEGER NOT NULL,
    flags    INTEGER NOT NULL,
    path     TEXT    NOT NULL
);
`

// OpenSQLite opens (or creates) the database at path. ":memory:" gives a
// throwaway in-memory journal.
func OpenSQLite(path string, maxEntries int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %q: %w", path, err)
	}

	// One writer at a time; a single connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA synchronous = NORMAL`,
		ddl,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: init %q: %w", path, err)
		}
	}
	return &SQLiteStore{db: db, maxEntries: maxEntries}, nil
}

// Append inserts ev and prunes rows beyond the bound.
func (s *SQLiteStore) Append(ctx context.Context, ev fsevent.ChangeEvent) error {
	e := NewEntry(ev, now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (ts, event_id, flags, path) VALUES (?, ?, ?, ?)`,
		e.Timestamp.Format(time.RFC3339Nano),
		int64(e.ID), //nolint:gosec // ids are opaque; stored bit-for-bit
		int64(e.Flags),
		e.Path,
	); err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}

	if s.maxEntries > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM events WHERE seq <= (SELECT MAX(seq) FROM events) - ?`,
			s.maxEntries,
		); err != nil {
			return fmt.Errorf("journal: prune: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest entries, oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, event_id, flags, path
		 FROM   events
		 ORDER  BY seq DESC
		 LIMIT  ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			tsStr string
			id    int64
			flags int64
			e     Entry
		)
		if err := rows.Scan(&tsStr, &id, &flags, &e.Path); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		// RFC3339Nano also parses timestamps without fractional seconds.
		e.Timestamp, err = time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			return nil, fmt.Errorf("journal: scan timestamp %q: %w", tsStr, err)
		}
		e.ID = uint64(id) //nolint:gosec // see Append
		e.Flags = fsevent.Flags(flags)
		e.Kinds = e.Flags.Names()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
