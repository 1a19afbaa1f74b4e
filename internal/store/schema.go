// Package store provides the SQLite-backed remote store for notes and
// undercurrents, with optional FTS5 full-text search over notes.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_user_created ON notes(user_id, created_at);

CREATE TABLE IF NOT EXISTS undercurrents (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	summary_text     TEXT NOT NULL DEFAULT '',
	questions        TEXT NOT NULL DEFAULT '[]',
	notes_included   TEXT NOT NULL DEFAULT '[]',
	sentiment_colors TEXT NOT NULL DEFAULT '[]',
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_undercurrents_user_created ON undercurrents(user_id, created_at);
`

// DB wraps a sql.DB with store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
