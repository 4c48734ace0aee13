// Package db provides the SQLite-backed store for Quill: admin users, admin
// sessions, module items and media records.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// InMemory is the target that opens a private in-memory database.
const InMemory = ":memory:"

// DB wraps a SQLite connection pool.
type DB struct {
	*sql.DB
	target string
}

const schema = `
CREATE TABLE IF NOT EXISTS admin_users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	locale        TEXT NOT NULL DEFAULT 'en',
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS admin_sessions (
	id             TEXT PRIMARY KEY,
	user_id        INTEGER NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
	created_at     TEXT NOT NULL,
	last_active_at TEXT NOT NULL,
	ended_at       TEXT
);

CREATE TABLE IF NOT EXISTS items (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	module     TEXT NOT NULL,
	title      TEXT NOT NULL,
	slug       TEXT NOT NULL,
	data       TEXT NOT NULL DEFAULT '{}',
	published  INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	UNIQUE(module, slug)
);

CREATE TABLE IF NOT EXISTS media (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	filename    TEXT NOT NULL,
	stored_name TEXT NOT NULL,
	url         TEXT NOT NULL,
	size        INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_migrations (
	name       TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL
);
`

// Open opens the database at target without touching the schema.
//
// The pool is pinned to one connection: an in-memory database only lives as
// long as its connection, and a single writer keeps file targets lock-free.
func Open(target string) (*DB, error) {
	if target == "" {
		return nil, fmt.Errorf("database target is required")
	}
	conn, err := sql.Open("sqlite", target)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", target, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	return &DB{DB: conn, target: target}, nil
}

// OpenAndMigrate opens the database and applies the schema plus any SQL
// migrations found in migrationsDir.
func OpenAndMigrate(target, migrationsDir string) (*DB, error) {
	database, err := Open(target)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(migrationsDir); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

// Target returns the target the database was opened with.
func (db *DB) Target() string {
	return db.target
}

// Migrate creates the built-in tables and applies *.sql files from dir in
// lexical order. Each file is applied once; an empty or missing dir is fine.
func (db *DB) Migrate(dir string) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading migrations %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		applied, err := db.migrationApplied(name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := db.applyMigration(name, string(body)); err != nil {
			return err
		}
	}
	return nil
}

// AppliedMigrations lists recorded migration names in the order they were applied.
func (db *DB) AppliedMigrations() ([]string, error) {
	rows, err := db.Query(`SELECT name FROM schema_migrations ORDER BY applied_at, name`)
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning migration: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (db *DB) migrationApplied(name string) (bool, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, name).Scan(&count); err != nil {
		return false, fmt.Errorf("checking migration %s: %w", name, err)
	}
	return count > 0, nil
}

func (db *DB) applyMigration(name, body string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration %s: %w", name, err)
	}
	if _, err := tx.Exec(body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("applying migration %s: %w", name, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("recording migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %s: %w", name, err)
	}
	return nil
}

// IsMissingTable reports whether err was caused by querying a table that has
// not been created yet.
func IsMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func parseTime(field, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
