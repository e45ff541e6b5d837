package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/vigil/internal/domain/model"
)

// MemoryStore keeps everything in process memory. It is the default
// driver and the reference behavior for the SQL stores.
type MemoryStore struct {
	cfg config

	mu       sync.RWMutex
	meetings map[string]model.Meeting
	sessions map[string]model.Session
	events   map[string][]model.EventRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		cfg:      newConfig(opts),
		meetings: make(map[string]model.Meeting),
		sessions: make(map[string]model.Session),
		events:   make(map[string][]model.EventRecord),
	}
}

// Init implements Store.
func (s *MemoryStore) Init(context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// CreateMeeting implements Store.
func (s *MemoryStore) CreateMeeting(_ context.Context, m model.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[m.ID] = m
	return nil
}

// GetMeeting implements Store.
func (s *MemoryStore) GetMeeting(_ context.Context, id string) (model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return model.Meeting{}, ErrNotFound
	}
	return m, nil
}

// UpdateMeetingStatus implements Store.
func (s *MemoryStore) UpdateMeetingStatus(_ context.Context, id string, status model.MeetingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return ErrNotFound
	}
	if m.Status == status {
		return nil
	}
	if !m.Status.CanTransition(status) {
		return ErrInvalidTransition
	}
	m.Status = status
	s.meetings[id] = m
	return nil
}

// CreateSession implements Store.
func (s *MemoryStore) CreateSession(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[sess.MeetingID]
	if !ok {
		return ErrNotFound
	}
	if m.Status == model.MeetingEnded {
		return ErrMeetingEnded
	}
	for _, other := range s.sessions {
		if other.MeetingID == sess.MeetingID && !other.Ended() {
			return ErrSessionActive
		}
	}
	s.sessions[sess.ID] = sess
	return nil
}

// GetSession implements Store.
func (s *MemoryStore) GetSession(_ context.Context, id string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return sess, nil
}

// ActiveSession implements Store.
func (s *MemoryStore) ActiveSession(_ context.Context, meetingID string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.MeetingID == meetingID && !sess.Ended() {
			return sess, nil
		}
	}
	return model.Session{}, ErrNotFound
}

// LatestSession implements Store.
func (s *MemoryStore) LatestSession(_ context.Context, meetingID string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest model.Session
		found  bool
	)
	for _, sess := range s.sessions {
		if sess.MeetingID != meetingID {
			continue
		}
		if !found || sess.StartedAt.After(latest.StartedAt) {
			latest, found = sess, true
		}
	}
	if !found {
		return model.Session{}, ErrNotFound
	}
	return latest, nil
}

// ActiveSessions implements Store.
func (s *MemoryStore) ActiveSessions(context.Context) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if !sess.Ended() {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// UpdateSessionScore implements Store.
func (s *MemoryStore) UpdateSessionScore(_ context.Context, id string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Ended() {
		return ErrSessionEnded
	}
	sess.AuthenticityScore = score
	s.sessions[id] = sess
	return nil
}

// EndSession implements Store.
func (s *MemoryStore) EndSession(_ context.Context, id string, at time.Time, score ScoreFunc) (model.Session, []model.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, nil, ErrNotFound
	}
	if sess.Ended() {
		return sess, nil, ErrSessionEnded
	}
	history := make([]model.EventRecord, len(s.events[id]))
	copy(history, s.events[id])

	at = at.UTC()
	sess.EndedAt = &at
	sess.AuthenticityScore = score(history)
	s.sessions[id] = sess
	return sess, history, nil
}

// CreateEventLog implements Store.
func (s *MemoryStore) CreateEventLog(_ context.Context, sessionID string, sig model.Signal, receivedAt time.Time) (model.EventRecord, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return model.EventRecord{}, ErrNotFound
	}
	if sess.Ended() {
		return model.EventRecord{}, ErrSessionEnded
	}
	history := s.events[sessionID]
	rec := model.EventRecord{
		ID:         s.cfg.newID(),
		SessionID:  sessionID,
		Seq:        int64(len(history)) + 1,
		EventType:  sig.EventType,
		Timestamp:  sig.Timestamp,
		ReceivedAt: receivedAt.UTC(),
		Severity:   sig.Severity,
		Metadata:   sig.Metadata,
	}
	s.events[sessionID] = append(history, rec)
	observe("create_event_log", start, nil)
	return rec, nil
}

// GetEventsBySession implements Store.
func (s *MemoryStore) GetEventsBySession(_ context.Context, sessionID string) ([]model.EventRecord, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.EventRecord, len(s.events[sessionID]))
	copy(out, s.events[sessionID])
	observe("get_events", start, nil)
	return out, nil
}
