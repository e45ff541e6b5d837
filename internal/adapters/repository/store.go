// Package repository persists meetings, sessions and the append-only
// event log.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/metrics"
)

// Store provides read/write access to proctoring state.
type Store interface {
	// Init creates the schema if needed.
	Init(ctx context.Context) error
	Close() error

	CreateMeeting(ctx context.Context, m model.Meeting) error
	// GetMeeting returns ErrNotFound for unknown ids.
	GetMeeting(ctx context.Context, id string) (model.Meeting, error)
	// UpdateMeetingStatus moves a meeting forward. Setting the current
	// status again is a no-op; moving backwards returns
	// ErrInvalidTransition.
	UpdateMeetingStatus(ctx context.Context, id string, status model.MeetingStatus) error

	// CreateSession returns ErrSessionActive when the meeting already has
	// a session that has not ended.
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, id string) (model.Session, error)
	// ActiveSession returns the meeting's session that has not ended, or
	// ErrNotFound.
	ActiveSession(ctx context.Context, meetingID string) (model.Session, error)
	// LatestSession returns the most recently started session of a
	// meeting, ended or not.
	LatestSession(ctx context.Context, meetingID string) (model.Session, error)
	// ActiveSessions lists every session that has not ended.
	ActiveSessions(ctx context.Context) ([]model.Session, error)
	// UpdateSessionScore returns ErrSessionEnded once the session ended.
	UpdateSessionScore(ctx context.Context, id string, score int) error
	// EndSession ends the session and freezes score(history) as its final
	// score. The history is read under the session lock CreateEventLog
	// takes, so the frozen score covers every record the session will
	// ever have. It returns the ended session and that history. Ending
	// twice returns ErrSessionEnded.
	EndSession(ctx context.Context, id string, at time.Time, score ScoreFunc) (model.Session, []model.EventRecord, error)

	// CreateEventLog appends sig to the session history and assigns its
	// id and sequence number. It returns ErrSessionEnded once the session
	// ended.
	CreateEventLog(ctx context.Context, sessionID string, sig model.Signal, receivedAt time.Time) (model.EventRecord, error)
	// GetEventsBySession returns the history in sequence order.
	GetEventsBySession(ctx context.Context, sessionID string) ([]model.EventRecord, error)
}

// ScoreFunc derives a session score from its history.
type ScoreFunc func(history []model.EventRecord) int

// Driver names accepted by New.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// New opens a store for driver. The schema is not created; call Init.
func New(driver, dsn string, opts ...Option) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		return NewMemoryStore(opts...), nil
	case DriverSQLite:
		return NewSQLite(dsn, opts...)
	case DriverPostgres, "postgresql":
		return NewPostgres(dsn, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// observe records latency and errors of one store operation. Not-found
// lookups are not errors.
func observe(op string, start time.Time, err error) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && err != ErrNotFound { //nolint:errorlint // sentinel returned unwrapped
		metrics.RecordRepositoryError(op)
	}
}
