package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/vigil/internal/adapters/cache"
	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/adapters/transport"
	"github.com/okian/vigil/internal/adapters/wire"
	"github.com/okian/vigil/internal/domain/alerts"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/scoring"
	"github.com/okian/vigil/pkg/logger"
)

// CreatedMeeting is returned to the observer that created a meeting.
type CreatedMeeting struct {
	Meeting       model.Meeting `json:"meeting"`
	JoinLink      string        `json:"join_link"`
	ObserverToken string        `json:"observer_token,omitempty"`
}

// JoinedMeeting is returned to a candidate that joined a meeting.
type JoinedMeeting struct {
	Session        model.Session `json:"session"`
	Meeting        model.Meeting `json:"meeting"`
	CandidateToken string        `json:"candidate_token,omitempty"`
}

// Dashboard is the observer's view of a meeting.
type Dashboard struct {
	Meeting   model.Meeting           `json:"meeting"`
	Session   *model.Session          `json:"session"`
	Events    []model.EventRecord     `json:"events"`
	Alerts    []model.CheatAlert      `json:"alerts"`
	Tier      scoring.Tier            `json:"tier,omitempty"`
	Breakdown map[model.EventType]int `json:"breakdown,omitempty"`
}

// CreateMeeting opens a waiting meeting for recruiterName.
func (s *Service) CreateMeeting(ctx context.Context, recruiterName string) (CreatedMeeting, error) {
	name := strings.TrimSpace(recruiterName)
	if name == "" {
		return CreatedMeeting{}, fmt.Errorf("%w: recruiter_name is required", ErrInvalidInput)
	}
	m := model.Meeting{
		ID:            s.newID(),
		RecruiterName: name,
		CreatedAt:     s.clock.Now().UTC(),
		Status:        model.MeetingWaiting,
	}
	if err := s.store.CreateMeeting(ctx, m); err != nil {
		return CreatedMeeting{}, fmt.Errorf("create meeting: %w", err)
	}

	out := CreatedMeeting{
		Meeting:  m,
		JoinLink: strings.TrimRight(s.publicURL, "/") + "/join/" + m.ID,
	}
	if s.tokens != nil {
		tok, err := s.tokens.ObserverToken(m.ID)
		if err != nil {
			return CreatedMeeting{}, fmt.Errorf("observer token: %w", err)
		}
		out.ObserverToken = tok
	}
	s.logger.Info(ctx, "meeting created", logger.MeetingID(m.ID))
	return out, nil
}

// JoinMeeting starts a session for candidateName. It fails with
// repository.ErrMeetingEnded for ended meetings and
// repository.ErrSessionActive while another session is running.
func (s *Service) JoinMeeting(ctx context.Context, meetingID, candidateName string) (JoinedMeeting, error) {
	name := strings.TrimSpace(candidateName)
	if name == "" {
		return JoinedMeeting{}, fmt.Errorf("%w: candidate_name is required", ErrInvalidInput)
	}
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return JoinedMeeting{}, fmt.Errorf("meeting %s: %w", meetingID, err)
	}
	if m.Status == model.MeetingEnded {
		return JoinedMeeting{}, fmt.Errorf("meeting %s: %w", meetingID, repository.ErrMeetingEnded)
	}

	sess := model.Session{
		ID:                s.newID(),
		MeetingID:         meetingID,
		CandidateName:     name,
		AuthenticityScore: model.DefaultScore,
		StartedAt:         s.clock.Now().UTC(),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return JoinedMeeting{}, fmt.Errorf("join meeting %s: %w", meetingID, err)
	}
	if err := s.store.UpdateMeetingStatus(ctx, meetingID, model.MeetingActive); err != nil {
		return JoinedMeeting{}, fmt.Errorf("activate meeting: %w", err)
	}
	m.Status = model.MeetingActive

	out := JoinedMeeting{Session: sess, Meeting: m}
	if s.tokens != nil {
		tok, err := s.tokens.CandidateToken(meetingID, sess.ID)
		if err != nil {
			return JoinedMeeting{}, fmt.Errorf("candidate token: %w", err)
		}
		out.CandidateToken = tok
	}
	s.cacheScore(ctx, sess.ID, model.DefaultScore, 0, false)
	s.logger.Info(ctx, "candidate joined", logger.MeetingID(meetingID), logger.SessionID(sess.ID))
	return out, nil
}

// Dashboard returns the meeting with its latest session, history and
// reconstructed alerts.
func (s *Service) Dashboard(ctx context.Context, meetingID string) (Dashboard, error) {
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("meeting %s: %w", meetingID, err)
	}
	d := Dashboard{Meeting: m, Events: []model.EventRecord{}, Alerts: []model.CheatAlert{}}

	sess, err := s.store.LatestSession(ctx, meetingID)
	if errors.Is(err, repository.ErrNotFound) {
		return d, nil
	}
	if err != nil {
		return Dashboard{}, fmt.Errorf("latest session: %w", err)
	}
	history, err := s.store.GetEventsBySession(ctx, sess.ID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("history: %w", err)
	}
	d.Session = &sess
	d.Events = history
	d.Alerts = alerts.Reconstruct(history)
	d.Tier = scoring.ClassifyScore(sess.AuthenticityScore)
	d.Breakdown = scoring.Breakdown(history)
	return d, nil
}

// EndMeeting ends the active session, if any, and the meeting.
func (s *Service) EndMeeting(ctx context.Context, meetingID string) (Dashboard, error) {
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return Dashboard{}, fmt.Errorf("meeting %s: %w", meetingID, err)
	}
	sess, err := s.store.ActiveSession(ctx, meetingID)
	switch {
	case err == nil:
		if _, err := s.EndSession(ctx, sess.ID); err != nil && !errors.Is(err, repository.ErrSessionEnded) {
			return Dashboard{}, err
		}
	case errors.Is(err, repository.ErrNotFound):
		if err := s.store.UpdateMeetingStatus(ctx, meetingID, model.MeetingEnded); err != nil {
			return Dashboard{}, fmt.Errorf("end meeting: %w", err)
		}
	default:
		return Dashboard{}, fmt.Errorf("active session: %w", err)
	}
	return s.Dashboard(ctx, meetingID)
}

// EndSession freezes the session score at the value recomputed from its
// full history, ends the meeting and tells both rooms. Ending an ended
// session returns repository.ErrSessionEnded.
func (s *Service) EndSession(ctx context.Context, sessionID string) (int, error) {
	sess, history, err := s.store.EndSession(ctx, sessionID, s.clock.Now(), scoring.Score)
	if err != nil {
		return 0, fmt.Errorf("end session %s: %w", sessionID, err)
	}
	final := sess.AuthenticityScore
	if err := s.store.UpdateMeetingStatus(ctx, sess.MeetingID, model.MeetingEnded); err != nil {
		s.logger.Warn(ctx, "meeting status not updated", logger.MeetingID(sess.MeetingID), logger.Error(err))
	}

	frame := wire.MustEncode(wire.KindSessionEnded, wire.SessionEnded{SessionID: sessionID, FinalScore: final})
	s.hub.Publish(ctx, transport.ObserverRoom(sess.MeetingID), frame)
	s.hub.Publish(ctx, transport.CandidateRoom(sessionID), frame)
	s.cacheScore(ctx, sessionID, final, len(history), true)

	s.logger.Info(ctx, "session ended",
		logger.MeetingID(sess.MeetingID),
		logger.SessionID(sessionID),
		logger.Int("final_score", final),
	)
	return final, nil
}

// SessionScore returns the current score of a session, from the cache
// when possible.
func (s *Service) SessionScore(ctx context.Context, sessionID string) (cache.ScoreSnapshot, error) {
	if s.scores != nil {
		snap, found, err := s.scores.Get(ctx, sessionID)
		if err == nil && found {
			return snap, nil
		}
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return cache.ScoreSnapshot{}, fmt.Errorf("session %s: %w", sessionID, err)
	}
	history, err := s.store.GetEventsBySession(ctx, sessionID)
	if err != nil {
		return cache.ScoreSnapshot{}, fmt.Errorf("history: %w", err)
	}
	snap := cache.ScoreSnapshot{
		SessionID:         sessionID,
		AuthenticityScore: sess.AuthenticityScore,
		Tier:              scoring.ClassifyScore(sess.AuthenticityScore),
		TotalEvents:       len(history),
		Ended:             sess.Ended(),
	}
	s.cacheScore(ctx, sessionID, snap.AuthenticityScore, snap.TotalEvents, snap.Ended)
	return snap, nil
}

// SessionAlerts rebuilds the alerts of a session from its history.
func (s *Service) SessionAlerts(ctx context.Context, sessionID string) ([]model.CheatAlert, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	history, err := s.store.GetEventsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return alerts.Reconstruct(history), nil
}
