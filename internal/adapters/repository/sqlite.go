package repository

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite has no row locks; the store's single connection runs one
// transaction at a time.
var sqliteDialect = dialect{
	name: DriverSQLite,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS meetings (
			id TEXT PRIMARY KEY,
			recruiter_name TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			meeting_id TEXT NOT NULL REFERENCES meetings(id),
			candidate_name TEXT NOT NULL,
			authenticity_score INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active ON sessions(meeting_id) WHERE ended_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS event_logs (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			seq INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			ts INTEGER NOT NULL,
			received_at INTEGER NOT NULL,
			severity TEXT NOT NULL,
			metadata TEXT,
			UNIQUE (session_id, seq)
		)`,
	},
}

// NewSQLite opens a SQLite store. An empty dsn uses vigil.db in the
// working directory.
func NewSQLite(dsn string, opts ...Option) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:vigil.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection also keeps :memory:
	// databases shared across calls.
	db.SetMaxOpenConns(1)
	return &sqlStore{db: db, d: sqliteDialect, cfg: newConfig(opts)}, nil
}
