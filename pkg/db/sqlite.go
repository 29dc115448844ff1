package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sql.DB connection
type DB struct {
	*sql.DB
}

// NewDB creates a new SQLite database connection
func NewDB(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; this also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.DB.Close()
}

// InitSchema creates the run history table.
func (d *DB) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS process_runs (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		rule_key TEXT NOT NULL DEFAULT '',
		fuzzy INTEGER NOT NULL DEFAULT 0,
		new_due TEXT NOT NULL DEFAULT '',
		new_path TEXT NOT NULL DEFAULT '',
		archive_path TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_process_runs_path ON process_runs(path, started_at);
	CREATE INDEX IF NOT EXISTS idx_process_runs_started ON process_runs(started_at);
	`

	_, err := d.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}

	return nil
}
