package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint failure.
const pgUniqueViolation = "23505"

var postgresDialect = dialect{
	name:            DriverPostgres,
	numbered:        true,
	lockRow:         ` FOR UPDATE`,
	uniqueViolation: isPgUniqueViolation,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS meetings (
			id TEXT PRIMARY KEY,
			recruiter_name TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			meeting_id TEXT NOT NULL REFERENCES meetings(id),
			candidate_name TEXT NOT NULL,
			authenticity_score INTEGER NOT NULL,
			started_at BIGINT NOT NULL,
			ended_at BIGINT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active ON sessions(meeting_id) WHERE ended_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS event_logs (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			seq BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			ts BIGINT NOT NULL,
			received_at BIGINT NOT NULL,
			severity TEXT NOT NULL,
			metadata JSONB,
			UNIQUE (session_id, seq)
		)`,
	},
}

// NewPostgres opens a Postgres store through the pgx database/sql driver.
func NewPostgres(dsn string, opts ...Option) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/vigil?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &sqlStore{db: db, d: postgresDialect, cfg: newConfig(opts)}, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
