// Package sqlite implements the repository interfaces on SQLite.
//
// The driver is modernc.org/sqlite, a pure Go port: no CGo, so the server
// cross-compiles and runs in a scratch container. All state (users and
// frontier snapshots) lives in one file, and ":memory:" gives each test a
// fresh database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool. It implements
// repository.UserRepository and repository.FrontierRepository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
//   - "data/petithub.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would open its own empty
	// database, so in-memory databases get exactly one connection.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open is lazy; Ping surfaces a bad path or permissions now.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets request handlers read while a frontier snapshot is written.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Call it once, on shutdown.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is safe to re-run; columns added after a table
// first shipped go through addColumnIfNotExists.
func (db *DB) migrate() error {
	// users: github_id is UNIQUE, each GitHub account maps to exactly one row.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			github_id  INTEGER NOT NULL UNIQUE,
			login      TEXT NOT NULL,
			email      TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// The GitHub access token is used for API calls made on the user's behalf.
	if err := db.addColumnIfNotExists("users", "access_token",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding access_token to users: %w", err)
	}
	if err := db.addColumnIfNotExists("users", "refresh_token",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding refresh_token to users: %w", err)
	}
	if err := db.addColumnIfNotExists("users", "token_expires_at",
		"DATETIME"); err != nil {
		return fmt.Errorf("adding token_expires_at to users: %w", err)
	}

	// frontiers: one row per resolved frontier search. resolved_at is Unix
	// milliseconds so ordering never depends on timestamp formatting.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS frontiers (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			frontier_id INTEGER NOT NULL,
			seed        INTEGER NOT NULL,
			resolved_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_frontiers_resolved_at ON frontiers(resolved_at);
	`)
	if err != nil {
		return fmt.Errorf("creating frontiers table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// ALTER TABLE fails on an existing column, so this keeps migrations re-runnable.
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
