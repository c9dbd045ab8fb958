// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/tempy/internal/persistence/sqlite"
)

// Store persists probed metadata keyed by absolute path. A row is only
// valid for the size and modification time it was probed at.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the index at dbPath and migrates it.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS video_index (
		path TEXT PRIMARY KEY,
		size_bytes INTEGER NOT NULL,
		mod_time_ns INTEGER NOT NULL,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		fps REAL NOT NULL DEFAULT 0,
		duration_seconds REAL NOT NULL DEFAULT 0,
		probed_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Lookup returns the metadata for path if it was probed at exactly this
// size and modification time.
func (s *Store) Lookup(ctx context.Context, path string, size int64, modTime time.Time) (Metadata, bool, error) {
	query := `
	SELECT width, height, fps, duration_seconds, probed_at
	FROM video_index
	WHERE path = ? AND size_bytes = ? AND mod_time_ns = ?
	`
	var m Metadata
	var probedAt string
	err := s.db.QueryRowContext(ctx, query, path, size, modTime.UnixNano()).
		Scan(&m.Width, &m.Height, &m.FPS, &m.DurationSeconds, &probedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, fmt.Errorf("lookup %s: %w", path, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, probedAt); err == nil {
		m.ProbedAt = t
	}
	return m, true, nil
}

// Put stores m for path, replacing any older row.
func (s *Store) Put(ctx context.Context, path string, size int64, modTime time.Time, m Metadata) error {
	query := `
	INSERT INTO video_index (path, size_bytes, mod_time_ns, width, height, fps, duration_seconds, probed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		size_bytes = excluded.size_bytes,
		mod_time_ns = excluded.mod_time_ns,
		width = excluded.width,
		height = excluded.height,
		fps = excluded.fps,
		duration_seconds = excluded.duration_seconds,
		probed_at = excluded.probed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		path, size, modTime.UnixNano(),
		m.Width, m.Height, m.FPS, m.DurationSeconds,
		m.ProbedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

// Delete removes the row for path. Missing rows are not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM video_index WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Paths returns every indexed path.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM video_index ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Prune deletes every row whose path is not in keep, in one transaction,
// and returns how many rows were removed.
func (s *Store) Prune(ctx context.Context, keep map[string]struct{}) (int, error) {
	paths, err := s.Paths(ctx)
	if err != nil {
		return 0, fmt.Errorf("list paths: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	pruned := 0
	for _, p := range paths {
		if _, ok := keep[p]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM video_index WHERE path = ?`, p); err != nil {
			return 0, fmt.Errorf("prune %s: %w", p, err)
		}
		pruned++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return pruned, nil
}
