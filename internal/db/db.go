package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB with claimwise-specific helpers.
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
// The pool is pinned to one connection so every query sees the same database.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Path returns the file the database was opened from.
func (d *DB) Path() string { return d.path }

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// TimeLayout is the sortable UTC layout used for every stored timestamp.
const TimeLayout = "2006-01-02 15:04:05.000000"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// ParseTime parses a TimeLayout timestamp; invalid input yields the zero time.
func ParseTime(s string) time.Time {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// schema contains the full database schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK(role IN ('user','assistant')),
    content TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_user ON conversation_messages(user_id, seq);

CREATE TABLE IF NOT EXISTS decision_audit (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    query TEXT NOT NULL,
    outcome TEXT NOT NULL CHECK(outcome IN ('APPROVED','REJECTED')),
    amount REAL,
    coverage_status TEXT NOT NULL CHECK(coverage_status IN ('full','partial','none')),
    justification TEXT NOT NULL DEFAULT '',
    rule_overrides TEXT NOT NULL DEFAULT '[]',
    fallback INTEGER NOT NULL DEFAULT 0,
    clauses_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_decision_audit_timestamp ON decision_audit(timestamp);
CREATE INDEX IF NOT EXISTS idx_decision_audit_user ON decision_audit(user_id);
CREATE INDEX IF NOT EXISTS idx_decision_audit_outcome ON decision_audit(outcome);
`
