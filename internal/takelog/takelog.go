// Package takelog persists recorded takes in a SQLite database. It uses
// modernc.org/sqlite (pure Go, no CGO) with WAL mode and a single connection
// (SQLite serialises writes).
package takelog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/stagehand-vp/stagehand/pkg/slate"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeoutMillis = 5000

// Entry is one recorded take.
type Entry struct {
	ID         int64     `json:"id"`
	Slate      string    `json:"slate"`
	Take       int       `json:"take"`
	Name       string    `json:"name"` // canonical capture name, e.g. "sceneA_T3"
	Day        string    `json:"day"`  // compact capture date, e.g. "240307"
	RecordedAt time.Time `json:"recorded_at"`
}

// Store is a SQLite-backed take log.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if necessary) the take log database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("takelog: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("takelog: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("takelog: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("takelog: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS takes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	slate       TEXT    NOT NULL,
	take        INTEGER NOT NULL,
	name        TEXT    NOT NULL,
	day         TEXT    NOT NULL,
	recorded_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_takes_slate ON takes(slate);
CREATE INDEX IF NOT EXISTS idx_takes_recorded_at ON takes(recorded_at);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("takelog: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists a take for the given slate. The stored name and day follow
// the console's capture naming conventions.
func (s *Store) Record(ctx context.Context, slateName string, take int) (Entry, error) {
	now := s.now().UTC()
	entry := Entry{
		Slate:      slateName,
		Take:       take,
		Name:       slate.CaptureName(slateName, take),
		Day:        slate.DateString(now),
		RecordedAt: now,
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO takes (slate, take, name, day, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		entry.Slate, entry.Take, entry.Name, entry.Day, entry.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("takelog: record %s: %w", entry.Name, err)
	}

	entry.ID, err = res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("takelog: record %s: %w", entry.Name, err)
	}

	s.logger.Info("take recorded", "name", entry.Name, "day", entry.Day)
	return entry, nil
}

// NextTake returns the next free take number for a slate (1 when the slate
// has no recorded takes yet).
func (s *Store) NextTake(ctx context.Context, slateName string) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(take), 0) + 1 FROM takes WHERE slate = ?`, slateName,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("takelog: next take for %s: %w", slateName, err)
	}
	return next, nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slate, take, name, day, recorded_at FROM takes ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("takelog: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var recorded string
		if err := rows.Scan(&e.ID, &e.Slate, &e.Take, &e.Name, &e.Day, &recorded); err != nil {
			return nil, fmt.Errorf("takelog: scan: %w", err)
		}
		e.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded)
		if err != nil {
			return nil, fmt.Errorf("takelog: parse recorded_at %q: %w", recorded, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Purge deletes entries recorded before the cutoff and reports how many were
// removed.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-olderThan).Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx, `DELETE FROM takes WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("takelog: purge: %w", err)
	}
	return res.RowsAffected()
}
