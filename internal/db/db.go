// Package db provides the SQLite connection and schema for lightingctl.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Switch ledger - append-only audit trail of every output transition
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS switch_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			switch_name TEXT NOT NULL,
			state TEXT NOT NULL,
			cause_type TEXT NOT NULL,
			cause TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_switch_ledger_ts ON switch_ledger(timestamp);
		CREATE INDEX IF NOT EXISTS idx_switch_ledger_switch ON switch_ledger(switch_name, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create switch_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
