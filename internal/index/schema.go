// Package index keeps a SQLite copy of every list item in the vault so that
// scheduled tasks can be found without re-reading notes.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	path       TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	path        TEXT    NOT NULL REFERENCES notes(path) ON DELETE CASCADE,
	line        INTEGER NOT NULL,
	parent_line INTEGER,
	ord         INTEGER NOT NULL,
	symbol      TEXT    NOT NULL DEFAULT '-',
	status      TEXT    NOT NULL DEFAULT '',
	is_task     INTEGER NOT NULL DEFAULT 0,
	text        TEXT    NOT NULL DEFAULT '',
	scheduled   TEXT,
	PRIMARY KEY (path, line)
);

CREATE INDEX IF NOT EXISTS idx_tasks_scheduled ON tasks(scheduled);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
