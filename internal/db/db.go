package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB with twinpilot-specific helpers.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS persona_rules (
    persona_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    rules TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY(persona_id, version)
);

CREATE INDEX IF NOT EXISTS idx_persona_active ON persona_rules(persona_id, active);

CREATE TABLE IF NOT EXISTS audit_records (
    id TEXT PRIMARY KEY,
    turn_id TEXT NOT NULL UNIQUE,
    persona_id TEXT NOT NULL,
    intent TEXT NOT NULL DEFAULT '',
    timestamp DATETIME NOT NULL DEFAULT (datetime('now')),
    deterministic_passed INTEGER NOT NULL,
    structure_score REAL NOT NULL DEFAULT 0,
    voice_score REAL NOT NULL DEFAULT 0,
    blended_draft_score REAL NOT NULL DEFAULT 0,
    blended_final_score REAL NOT NULL DEFAULT 0,
    rewrite_applied INTEGER NOT NULL DEFAULT 0,
    fail_safe_used INTEGER NOT NULL DEFAULT 0,
    violated_clauses TEXT NOT NULL DEFAULT '[]',
    rewrite_directives TEXT NOT NULL DEFAULT '[]',
    draft_text TEXT NOT NULL DEFAULT '',
    final_text TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_turn ON audit_records(turn_id);
CREATE INDEX IF NOT EXISTS idx_audit_persona ON audit_records(persona_id, timestamp);

CREATE TABLE IF NOT EXISTS conversation_log (
    id TEXT PRIMARY KEY,
    turn_id TEXT NOT NULL,
    persona_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK(role IN ('user','assistant')),
    content TEXT NOT NULL,
    intent TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_conversation_turn ON conversation_log(turn_id);
CREATE INDEX IF NOT EXISTS idx_conversation_persona ON conversation_log(persona_id, created_at);
`
