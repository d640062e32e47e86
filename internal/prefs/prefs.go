// ABOUTME: SQLite-backed repository for favorite/pin/archive thread flags
// ABOUTME: Merge combines server favorites with client-local preferences

package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	kindFavorite = "favorite"
	kindPin      = "pin"
	kindArchive  = "archive"
)

// Flags are the effective preference bits for one thread.
type Flags struct {
	Favorite bool
	Pinned   bool
	Archived bool
}

// Merge combines server-known flags with client-local ones. Favorite is
// mirrored from the server but an optimistic local toggle wins until
// the next refresh; pin and archive are client-only and come from the
// local side alone.
func Merge(server, local Flags) Flags {
	return Flags{
		Favorite: server.Favorite || local.Favorite,
		Pinned:   local.Pinned,
		Archived: local.Archived,
	}
}

// Repository persists preference flags keyed by thread id.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the preference database at the given path.
// Parent directories are created if needed.
func Open(path string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "prefs")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating prefs directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening prefs database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS thread_prefs (
			thread_id TEXT NOT NULL,
			kind      TEXT NOT NULL,
			PRIMARY KEY (thread_id, kind),
			CHECK (kind IN ('favorite', 'pin', 'archive'))
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating prefs schema: %w", err)
	}

	logger.Debug("preference store opened", "path", path)
	return &Repository{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) set(ctx context.Context, threadID, kind string, on bool) error {
	var err error
	if on {
		_, err = r.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO thread_prefs (thread_id, kind) VALUES (?, ?)",
			threadID, kind)
	} else {
		_, err = r.db.ExecContext(ctx,
			"DELETE FROM thread_prefs WHERE thread_id = ? AND kind = ?",
			threadID, kind)
	}
	if err != nil {
		return fmt.Errorf("writing %s flag: %w", kind, err)
	}
	return nil
}

// SetFavorite stores the local mirror of the server favorite flag.
func (r *Repository) SetFavorite(ctx context.Context, threadID string, on bool) error {
	return r.set(ctx, threadID, kindFavorite, on)
}

// SetPinned stores the client-only pin flag.
func (r *Repository) SetPinned(ctx context.Context, threadID string, on bool) error {
	return r.set(ctx, threadID, kindPin, on)
}

// SetArchived stores the client-only archive flag.
func (r *Repository) SetArchived(ctx context.Context, threadID string, on bool) error {
	return r.set(ctx, threadID, kindArchive, on)
}

// Flags returns the stored flags for one thread.
func (r *Repository) Flags(ctx context.Context, threadID string) (Flags, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT kind FROM thread_prefs WHERE thread_id = ?", threadID)
	if err != nil {
		return Flags{}, fmt.Errorf("reading flags: %w", err)
	}
	defer rows.Close()

	var f Flags
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return Flags{}, fmt.Errorf("scanning flag: %w", err)
		}
		applyKind(&f, kind)
	}
	return f, rows.Err()
}

// All returns the stored flags for every thread that has any.
func (r *Repository) All(ctx context.Context) (map[string]Flags, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT thread_id, kind FROM thread_prefs")
	if err != nil {
		return nil, fmt.Errorf("reading all flags: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Flags)
	for rows.Next() {
		var id, kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, fmt.Errorf("scanning flag row: %w", err)
		}
		f := out[id]
		applyKind(&f, kind)
		out[id] = f
	}
	return out, rows.Err()
}

func applyKind(f *Flags, kind string) {
	switch kind {
	case kindFavorite:
		f.Favorite = true
	case kindPin:
		f.Pinned = true
	case kindArchive:
		f.Archived = true
	}
}
