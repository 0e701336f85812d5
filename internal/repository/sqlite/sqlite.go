// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// SQLite is the default backend: it needs no server, and ":memory:" gives
// every test its own throwaway database. modernc.org/sqlite is a pure Go
// translation of SQLite, so the binary builds without cgo.
//
// Natural keys are enforced by UNIQUE constraints in the schema below. Calendar
// days (tour start_date, concert date) are stored as 'YYYY-MM-DD' text so the
// constraint compares days, never instants.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/tour-tracker/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/tours.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database, one per DB value
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would be a separate empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// connPragmas run on every new pooled connection, not just the first one.
// busy_timeout makes a writer wait for the lock instead of failing with
// SQLITE_BUSY, so racing inserts reach the UNIQUE constraint.
var connPragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
}

func dsn(dbPath string) string {
	q := url.Values{"_pragma": connPragmas}
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + q.Encode()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates every table. CREATE ... IF NOT EXISTS and
// addColumnIfNotExists make it safe to run on every start.
func (db *DB) migrate() error {
	// Phase 1: credential store
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			country       TEXT,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Phase 2: profile fields
	for _, column := range []string{"handle", "pronouns", "bio"} {
		if err := db.addColumnIfNotExists("users", column, "TEXT"); err != nil {
			return fmt.Errorf("adding %s to users: %w", column, err)
		}
	}

	// Phase 3: catalog
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS cities (
			city_id        INTEGER PRIMARY KEY AUTOINCREMENT,
			name           TEXT NOT NULL,
			country        TEXT NOT NULL,
			dma_id         INTEGER,
			state_province TEXT,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (name, country)
		);

		CREATE TABLE IF NOT EXISTS venues (
			venue_id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			city_id    INTEGER NOT NULL REFERENCES cities(city_id),
			state      TEXT,
			country    TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (name, city_id)
		);

		CREATE TABLE IF NOT EXISTS tours (
			tour_id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name            TEXT NOT NULL,
			artist_id       INTEGER NOT NULL,
			start_date      TEXT NOT NULL,
			end_date        TEXT,
			description     TEXT,
			image_urls      TEXT,
			is_live_album   INTEGER NOT NULL DEFAULT 0,
			is_concert_film INTEGER NOT NULL DEFAULT 0,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (name, artist_id, start_date)
		);
		CREATE INDEX IF NOT EXISTS idx_tours_start_date ON tours(start_date);

		CREATE TABLE IF NOT EXISTS concerts (
			concert_id    INTEGER PRIMARY KEY AUTOINCREMENT,
			tour_id       INTEGER NOT NULL REFERENCES tours(tour_id),
			venue_id      INTEGER NOT NULL REFERENCES venues(venue_id),
			date          TEXT NOT NULL,
			special_notes TEXT,
			user_count    INTEGER NOT NULL DEFAULT 0,
			review_count  INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (tour_id, venue_id, date)
		);
		CREATE INDEX IF NOT EXISTS idx_concerts_date ON concerts(date);
	`)
	if err != nil {
		return fmt.Errorf("creating catalog tables: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent, so they are safe to run repeatedly.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
