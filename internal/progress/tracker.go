// internal/progress/tracker.go
package progress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS seed_status (
	spider     TEXT NOT NULL,
	seed       TEXT NOT NULL,
	status     TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (spider, seed)
)`

// Tracker remembers which seeds a spider has finished so an interrupted
// run picks up where it stopped.
type Tracker struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and creates if needed) the progress database at path.
// ":memory:" gives a throwaway tracker.
func Open(path string) (*Tracker, error) {
	if path == "" {
		return nil, fmt.Errorf("progress database path is required")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create progress directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open progress database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create seed_status table: %w", err)
	}
	return &Tracker{db: db, now: time.Now}, nil
}

// MarkDone records seed as finished for spider.
func (t *Tracker) MarkDone(ctx context.Context, spider, seed string) error {
	return t.mark(ctx, spider, seed, StatusDone)
}

// MarkFailed records a seed that errored; it stays pending.
func (t *Tracker) MarkFailed(ctx context.Context, spider, seed string) error {
	return t.mark(ctx, spider, seed, StatusFailed)
}

func (t *Tracker) mark(ctx context.Context, spider, seed, status string) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO seed_status (spider, seed, status, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (spider, seed) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		spider, seed, status, t.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark seed %s/%s %s: %w", spider, seed, status, err)
	}
	return nil
}

// IsDone reports whether seed was finished for spider.
func (t *Tracker) IsDone(ctx context.Context, spider, seed string) (bool, error) {
	var status string
	err := t.db.QueryRowContext(ctx,
		`SELECT status FROM seed_status WHERE spider = ? AND seed = ?`, spider, seed).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read seed status: %w", err)
	}
	return status == StatusDone, nil
}

// Pending filters seeds down to those not yet done, keeping their order.
func (t *Tracker) Pending(ctx context.Context, spider string, seeds []string) ([]string, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT seed FROM seed_status WHERE spider = ? AND status = ?`, spider, StatusDone)
	if err != nil {
		return nil, fmt.Errorf("failed to list finished seeds: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		done[seed] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pending := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if !done[seed] {
			pending = append(pending, seed)
		}
	}
	return pending, nil
}

// Count returns how many seeds of spider are in the given status.
func (t *Tracker) Count(ctx context.Context, spider, status string) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seed_status WHERE spider = ? AND status = ?`, spider, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count seeds: %w", err)
	}
	return n, nil
}

// Reset forgets all progress of spider so the next run starts over.
func (t *Tracker) Reset(ctx context.Context, spider string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM seed_status WHERE spider = ?`, spider); err != nil {
		return fmt.Errorf("failed to reset progress for %s: %w", spider, err)
	}
	return nil
}

// Close closes the database.
func (t *Tracker) Close() error {
	return t.db.Close()
}
