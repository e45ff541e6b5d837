package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/vigil/internal/domain/model"
)

// dialect holds what differs between SQL backends. Queries are written
// with ? placeholders and rebound for numbered-placeholder databases.
type dialect struct {
	name     string
	numbered bool
	schema   []string
	// lockRow is appended to a single-row select to lock the row for the
	// rest of the transaction.
	lockRow string
	// uniqueViolation reports whether err is a unique constraint failure.
	uniqueViolation func(err error) bool
}

func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore implements Store over database/sql. Timestamps are stored as
// unix nanoseconds so both backends round-trip them exactly.
type sqlStore struct {
	db  *sql.DB
	d   dialect
	cfg config
}

func (s *sqlStore) Init(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s schema: %w", s.d.name, err)
		}
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) CreateMeeting(ctx context.Context, m model.Meeting) (err error) {
	defer func(start time.Time) { observe("create_meeting", start, err) }(time.Now())
	_, err = s.db.ExecContext(ctx, s.d.rebind(
		`INSERT INTO meetings (id, recruiter_name, created_at, status) VALUES (?, ?, ?, ?)`),
		m.ID, m.RecruiterName, m.CreatedAt.UnixNano(), string(m.Status))
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (s *sqlStore) GetMeeting(ctx context.Context, id string) (m model.Meeting, err error) {
	defer func(start time.Time) { observe("get_meeting", start, err) }(time.Now())
	return s.getMeeting(ctx, s.db, id)
}

func (s *sqlStore) getMeeting(ctx context.Context, q querier, id string) (model.Meeting, error) {
	var (
		m       model.Meeting
		created int64
		status  string
	)
	err := q.QueryRowContext(ctx, s.d.rebind(
		`SELECT id, recruiter_name, created_at, status FROM meetings WHERE id = ?`), id).
		Scan(&m.ID, &m.RecruiterName, &created, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Meeting{}, ErrNotFound
	}
	if err != nil {
		return model.Meeting{}, fmt.Errorf("select meeting: %w", err)
	}
	m.CreatedAt = time.Unix(0, created).UTC()
	m.Status = model.MeetingStatus(status)
	return m, nil
}

func (s *sqlStore) UpdateMeetingStatus(ctx context.Context, id string, status model.MeetingStatus) (err error) {
	defer func(start time.Time) { observe("update_meeting_status", start, err) }(time.Now())
	return s.inTx(ctx, func(tx *sql.Tx) error {
		m, err := s.getMeeting(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.Status == status {
			return nil
		}
		if !m.Status.CanTransition(status) {
			return ErrInvalidTransition
		}
		_, err = tx.ExecContext(ctx, s.d.rebind(`UPDATE meetings SET status = ? WHERE id = ?`), string(status), id)
		return err
	})
}

func (s *sqlStore) CreateSession(ctx context.Context, sess model.Session) (err error) {
	defer func(start time.Time) { observe("create_session", start, err) }(time.Now())
	return s.inTx(ctx, func(tx *sql.Tx) error {
		m, err := s.getMeeting(ctx, tx, sess.MeetingID)
		if err != nil {
			return err
		}
		if m.Status == model.MeetingEnded {
			return ErrMeetingEnded
		}
		var active int
		if err := tx.QueryRowContext(ctx, s.d.rebind(
			`SELECT COUNT(*) FROM sessions WHERE meeting_id = ? AND ended_at IS NULL`), sess.MeetingID).
			Scan(&active); err != nil {
			return fmt.Errorf("count active sessions: %w", err)
		}
		if active > 0 {
			return ErrSessionActive
		}
		_, err = tx.ExecContext(ctx, s.d.rebind(
			`INSERT INTO sessions (id, meeting_id, candidate_name, authenticity_score, started_at, ended_at)
			VALUES (?, ?, ?, ?, ?, NULL)`),
			sess.ID, sess.MeetingID, sess.CandidateName, sess.AuthenticityScore, sess.StartedAt.UnixNano())
		if err != nil {
			if s.d.uniqueViolation != nil && s.d.uniqueViolation(err) {
				return ErrSessionActive
			}
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

const sessionColumns = `id, meeting_id, candidate_name, authenticity_score, started_at, ended_at`

func (s *sqlStore) GetSession(ctx context.Context, id string) (sess model.Session, err error) {
	defer func(start time.Time) { observe("get_session", start, err) }(time.Now())
	return s.getSession(ctx, s.db, id)
}

func (s *sqlStore) getSession(ctx context.Context, q querier, id string) (model.Session, error) {
	return s.oneSession(q.QueryRowContext(ctx, s.d.rebind(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id))
}

// lockSession reads a session and locks its row until the transaction
// ends. CreateEventLog and EndSession both take this lock.
func (s *sqlStore) lockSession(ctx context.Context, tx *sql.Tx, id string) (model.Session, error) {
	return s.oneSession(tx.QueryRowContext(ctx, s.d.rebind(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`+s.d.lockRow), id))
}

func (s *sqlStore) ActiveSession(ctx context.Context, meetingID string) (sess model.Session, err error) {
	defer func(start time.Time) { observe("active_session", start, err) }(time.Now())
	return s.oneSession(s.db.QueryRowContext(ctx, s.d.rebind(
		`SELECT `+sessionColumns+` FROM sessions WHERE meeting_id = ? AND ended_at IS NULL`), meetingID))
}

func (s *sqlStore) LatestSession(ctx context.Context, meetingID string) (sess model.Session, err error) {
	defer func(start time.Time) { observe("latest_session", start, err) }(time.Now())
	return s.oneSession(s.db.QueryRowContext(ctx, s.d.rebind(
		`SELECT `+sessionColumns+` FROM sessions WHERE meeting_id = ? ORDER BY started_at DESC LIMIT 1`), meetingID))
}

func (s *sqlStore) ActiveSessions(ctx context.Context) (out []model.Session, err error) {
	defer func(start time.Time) { observe("active_sessions", start, err) }(time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE ended_at IS NULL ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("select active sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *sqlStore) UpdateSessionScore(ctx context.Context, id string, score int) (err error) {
	defer func(start time.Time) { observe("update_session_score", start, err) }(time.Now())
	res, err := s.db.ExecContext(ctx, s.d.rebind(
		`UPDATE sessions SET authenticity_score = ? WHERE id = ? AND ended_at IS NULL`), score, id)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.getSession(ctx, s.db, id); err != nil {
		return err
	}
	return ErrSessionEnded
}

func (s *sqlStore) EndSession(ctx context.Context, id string, at time.Time, score ScoreFunc) (sess model.Session, history []model.EventRecord, err error) {
	defer func(start time.Time) { observe("end_session", start, err) }(time.Now())
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.lockSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Ended() {
			sess = cur
			return ErrSessionEnded
		}
		if history, err = s.events(ctx, tx, id); err != nil {
			return err
		}
		final := score(history)
		if _, err := tx.ExecContext(ctx, s.d.rebind(
			`UPDATE sessions SET authenticity_score = ?, ended_at = ? WHERE id = ?`),
			final, at.UnixNano(), id); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		at = time.Unix(0, at.UnixNano()).UTC()
		cur.AuthenticityScore = final
		cur.EndedAt = &at
		sess = cur
		return nil
	})
	if err != nil {
		return sess, nil, err
	}
	return sess, history, nil
}

func (s *sqlStore) CreateEventLog(ctx context.Context, sessionID string, sig model.Signal, receivedAt time.Time) (rec model.EventRecord, err error) {
	defer func(start time.Time) { observe("create_event_log", start, err) }(time.Now())
	meta, err := json.Marshal(sig.Metadata)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("encode metadata: %w", err)
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		sess, err := s.lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if sess.Ended() {
			return ErrSessionEnded
		}
		var seq int64
		if err := tx.QueryRowContext(ctx, s.d.rebind(
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM event_logs WHERE session_id = ?`), sessionID).
			Scan(&seq); err != nil {
			return fmt.Errorf("next seq: %w", err)
		}
		rec = model.EventRecord{
			ID:         s.cfg.newID(),
			SessionID:  sessionID,
			Seq:        seq,
			EventType:  sig.EventType,
			Timestamp:  time.Unix(0, sig.Timestamp.UnixNano()).UTC(),
			ReceivedAt: time.Unix(0, receivedAt.UnixNano()).UTC(),
			Severity:   sig.Severity,
			Metadata:   sig.Metadata,
		}
		if _, err := tx.ExecContext(ctx, s.d.rebind(
			`INSERT INTO event_logs (id, session_id, seq, event_type, ts, received_at, severity, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			rec.ID, rec.SessionID, rec.Seq, string(rec.EventType), rec.Timestamp.UnixNano(),
			rec.ReceivedAt.UnixNano(), string(rec.Severity), string(meta)); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.EventRecord{}, err
	}
	return rec, nil
}

func (s *sqlStore) GetEventsBySession(ctx context.Context, sessionID string) (out []model.EventRecord, err error) {
	defer func(start time.Time) { observe("get_events", start, err) }(time.Now())
	return s.events(ctx, s.db, sessionID)
}

func (s *sqlStore) events(ctx context.Context, q rowsQuerier, sessionID string) ([]model.EventRecord, error) {
	rows, err := q.QueryContext(ctx, s.d.rebind(
		`SELECT id, session_id, seq, event_type, ts, received_at, severity, metadata
		FROM event_logs WHERE session_id = ? ORDER BY seq`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()
	out := []model.EventRecord{}
	for rows.Next() {
		var (
			rec          model.EventRecord
			eventType    string
			severity     string
			ts, received int64
			meta         []byte
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Seq, &eventType, &ts, &received, &severity, &meta); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.EventType = model.EventType(eventType)
		rec.Severity = model.Severity(severity)
		rec.Timestamp = time.Unix(0, ts).UTC()
		rec.ReceivedAt = time.Unix(0, received).UTC()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowsQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *sqlStore) oneSession(row *sql.Row) (model.Session, error) {
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	return sess, err
}

func scanSession(row scanner) (model.Session, error) {
	var (
		sess    model.Session
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.MeetingID, &sess.CandidateName, &sess.AuthenticityScore, &started, &ended); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, err
		}
		return model.Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		sess.EndedAt = &t
	}
	return sess, nil
}

func (s *sqlStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
