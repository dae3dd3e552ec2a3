package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := RequireLocalFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the dispatcher is serial anyway.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS batch_run (
  id           TEXT PRIMARY KEY,
  requested    TEXT NOT NULL,
  serial       TEXT,
  config_hash  TEXT,
  status       TEXT NOT NULL,
  error_kind   TEXT,
  failed_app   TEXT,
  failed_phase TEXT,
  last_error   TEXT,
  started_at   TEXT NOT NULL,
  completed_at TEXT,
  duration_ms  INTEGER
);`,
		`CREATE TABLE IF NOT EXISTS batch_app (
  batch_id     TEXT NOT NULL REFERENCES batch_run(id) ON DELETE CASCADE,
  position     INTEGER NOT NULL,
  app          TEXT NOT NULL,
  dismissed_at TEXT NOT NULL,
  PRIMARY KEY (batch_id, position)
);`,
		`CREATE INDEX IF NOT EXISTS batch_run_started_at_idx ON batch_run(started_at);`,
		`CREATE INDEX IF NOT EXISTS batch_run_status_idx ON batch_run(status);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
