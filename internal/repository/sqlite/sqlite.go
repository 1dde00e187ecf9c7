// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside the binary as a single
// file. No separate database server to install, configure, or manage.
// For a single-server dashboard backend that stores one small collection
// of users and a handful of seed cost rows, that is exactly the right
// amount of infrastructure.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation
// of the SQLite C code — works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
// It implements repository.UserRepository and repository.CostRepository.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection, runs migrations, and
// seeds the cost series if they are empty.
//
// dbPath examples:
//   - "data/finops.db"  → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces an immediate connection so a bad path or permissions
	// problem surfaces here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress —
	// default SQLite locks the whole file during writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	if err := db.seedCostSamples(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: seeding cost samples: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Always defer this next to
// the New call.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it safe to
// run on every start.
func (db *DB) migrate() error {
	// The UNIQUE constraint on email is what makes registration atomic:
	// a concurrent duplicate INSERT loses inside SQLite, not in our code.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			plan          TEXT NOT NULL DEFAULT 'free',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Cost samples are daily rows in one of two series ("actual" or
	// "predicted"), one row per series per day.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS cost_samples (
			series    TEXT NOT NULL,
			date      TEXT NOT NULL,
			sagemaker REAL NOT NULL,
			s3        REAL NOT NULL,
			ses       REAL NOT NULL,
			total     REAL NOT NULL,
			PRIMARY KEY (series, date)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating cost_samples table: %w", err)
	}

	return nil
}
