package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB

	// writeMu serializes writers so parallel aggregations don't contend on the lock
	writeMu sync.Mutex
}

// Open opens a SQLite database connection
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// WAL lets the aggregation workers read while one of them writes
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return &DB{DB: db}, nil
}

// tables lists every table owned by a pipeline run, dependents first
var tables = []string{
	"typed_histograms",
	"grouped_histograms",
	"project_histograms",
	"time_totals",
	"totals",
	"slice_tags_project",
	"slice_tags_grouped",
	"expanded_hours",
	"entries",
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project TEXT NOT NULL,
	description TEXT NOT NULL,
	tags TEXT NOT NULL,
	billable INTEGER NOT NULL,
	start_at TEXT NOT NULL,
	end_at TEXT NOT NULL,
	duration INTEGER NOT NULL,
	source TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS expanded_hours (
	entry_id INTEGER NOT NULL,
	hour_start TEXT NOT NULL,
	project TEXT NOT NULL,
	description TEXT NOT NULL,
	tags TEXT NOT NULL,
	duration INTEGER NOT NULL,
	hour TEXT NOT NULL,
	day TEXT NOT NULL,
	month TEXT NOT NULL,
	year TEXT NOT NULL,
	date TEXT NOT NULL,
	week TEXT NOT NULL,
	week_month TEXT NOT NULL,
	FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_expanded_project ON expanded_hours(project, description);

CREATE TABLE IF NOT EXISTS slice_tags_grouped (
	project TEXT NOT NULL,
	description TEXT NOT NULL,
	tags TEXT NOT NULL,
	PRIMARY KEY (project, description)
);

CREATE TABLE IF NOT EXISTS slice_tags_project (
	project TEXT PRIMARY KEY,
	tags TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS totals (
	slice_type TEXT NOT NULL,
	slice_key TEXT NOT NULL,
	total INTEGER NOT NULL,
	PRIMARY KEY (slice_type, slice_key)
);

CREATE TABLE IF NOT EXISTS time_totals (
	time_type TEXT NOT NULL,
	time_value TEXT NOT NULL,
	total INTEGER NOT NULL,
	PRIMARY KEY (time_type, time_value)
);

CREATE TABLE IF NOT EXISTS typed_histograms (
	tag TEXT NOT NULL,
	slice_type TEXT NOT NULL,
	histogram TEXT NOT NULL,
	PRIMARY KEY (tag, slice_type)
);

CREATE TABLE IF NOT EXISTS grouped_histograms (
	project TEXT NOT NULL,
	description TEXT NOT NULL,
	slice_type TEXT NOT NULL,
	histogram TEXT NOT NULL,
	tags TEXT NOT NULL,
	PRIMARY KEY (project, description, slice_type)
);

CREATE TABLE IF NOT EXISTS project_histograms (
	project TEXT NOT NULL,
	slice_type TEXT NOT NULL,
	histogram TEXT NOT NULL,
	tags TEXT NOT NULL,
	PRIMARY KEY (project, slice_type)
);
`

// Migrate creates any missing tables
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Reset drops every pipeline table and recreates the schema, so each run
// starts from nothing
func (db *DB) Reset(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return tx.Commit()
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expiry REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expiry);
`

// MigrateSessions creates the table used by the dashboard's session store
func (db *DB) MigrateSessions(ctx context.Context) error {
	_, err := db.ExecContext(ctx, sessionSchema)
	return err
}
