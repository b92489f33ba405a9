// Package db stores the history of report runs in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

// SchemaVersion is stored in PRAGMA user_version once the schema is applied.
const SchemaVersion = 1

// pragmas are applied to every pooled connection through the DSN, so
// foreign keys (and with them ON DELETE CASCADE) hold on all of them.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"temp_store(MEMORY)",
}

// Credit columns hold hundredths of a credit.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		kind TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		workers INTEGER NOT NULL DEFAULT 0,
		users INTEGER NOT NULL DEFAULT 0,
		active_users INTEGER NOT NULL DEFAULT 0,
		failed_users INTEGER NOT NULL DEFAULT 0,
		data_points INTEGER NOT NULL DEFAULT 0,
		total_flex INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	`CREATE TABLE IF NOT EXISTS run_daily_totals (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		event_date TEXT NOT NULL,
		flex_credits INTEGER NOT NULL DEFAULT 0,
		prompt_credits INTEGER NOT NULL DEFAULT 0,
		data_points INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, event_date)
	)`,
	`CREATE TABLE IF NOT EXISTS run_model_totals (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		model TEXT NOT NULL,
		flex_credits INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, model)
	)`,
}

// DB is the run history database.
type DB struct {
	*sql.DB
	path string
}

// New opens (creating if needed) the history database at path and applies
// the schema.
func New(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// migrate applies the schema in one transaction unless user_version says it
// is already current. Databases written by a newer version are refused.
func (db *DB) migrate(ctx context.Context) error {
	version, err := db.UserVersion(ctx)
	if err != nil {
		return err
	}
	switch {
	case version == SchemaVersion:
		return nil
	case version > SchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return tx.Commit()
}

// UserVersion returns the schema version recorded in the database.
func (db *DB) UserVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Close checkpoints the WAL and closes the database.
func (db *DB) Close() error {
	_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.DB.Close()
}

// Vacuum reclaims space left by deleted runs.
func (db *DB) Vacuum() error {
	_, err := db.ExecContext(context.Background(), "VACUUM")
	return err
}
