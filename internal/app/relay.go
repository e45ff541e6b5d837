package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/adapters/transport"
	"github.com/okian/vigil/internal/adapters/wire"
	"github.com/okian/vigil/internal/auth"
	"github.com/okian/vigil/internal/domain/call"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Relay outcomes.
const (
	relayForwarded = "forwarded"
	relayDropped   = "dropped"
	relayRejected  = "rejected"
)

// Conn is an authenticated transport connection.
type Conn struct {
	Claims auth.Claims
	Member *transport.Member
}

// Dispatch handles one decoded client message. Ids in the payload must
// agree with the connection's token; the relayed payload is stamped with
// the ids the server resolved. Messages for ended sessions are dropped.
func (s *Service) Dispatch(ctx context.Context, c Conn, m wire.Message) error {
	switch p := m.Payload.(type) {
	case *wire.ObserverSubscribe:
		return s.subscribeObserver(ctx, c, p)
	case *wire.CandidateJoined:
		return s.joinCandidate(ctx, c, p)
	case *wire.BehaviorEvent:
		if !c.Claims.CanAct(p.SessionID) {
			return fmt.Errorf("%w: behavior_event for session %s", ErrForbidden, p.SessionID)
		}
		err := s.SubmitSignal(ctx, p.SessionID, p.Nonce, p.Event)
		if errors.Is(err, repository.ErrSessionEnded) {
			return nil
		}
		return err
	case *model.CodeUpdate:
		return s.relayCode(ctx, c, p)
	case *wire.AnswerSubmitted:
		return s.relayAnswer(ctx, c, p)
	case *wire.PushQuestion:
		return s.pushQuestion(ctx, c, p)
	case *wire.SessionEnd:
		return s.endFromClient(ctx, c, p)
	case *wire.Signal:
		if m.Kind.Signaling() {
			return s.relaySignal(ctx, c, m.Kind, p)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnhandled, m.Kind)
}

func (s *Service) subscribeObserver(ctx context.Context, c Conn, p *wire.ObserverSubscribe) error {
	if !c.Claims.CanObserve(p.MeetingID) {
		return fmt.Errorf("%w: meeting %s", ErrForbidden, p.MeetingID)
	}
	if _, err := s.store.GetMeeting(ctx, p.MeetingID); err != nil {
		return fmt.Errorf("meeting %s: %w", p.MeetingID, err)
	}
	s.hub.Join(c.Member, transport.ObserverRoom(p.MeetingID))
	s.logger.Debug(ctx, "observer subscribed", logger.MeetingID(p.MeetingID), logger.String("member", c.Member.ID()))
	return nil
}

func (s *Service) joinCandidate(ctx context.Context, c Conn, p *wire.CandidateJoined) error {
	if !c.Claims.CanAct(p.SessionID) || c.Claims.MeetingID != p.MeetingID {
		return fmt.Errorf("%w: session %s", ErrForbidden, p.SessionID)
	}
	sess, err := s.store.GetSession(ctx, p.SessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", p.SessionID, err)
	}
	if sess.Ended() {
		return fmt.Errorf("session %s: %w", p.SessionID, repository.ErrSessionEnded)
	}
	s.hub.Join(c.Member, transport.CandidateRoom(sess.ID))

	name := sess.CandidateName
	if name == "" {
		name = p.CandidateName
	}
	s.hub.Publish(ctx, transport.ObserverRoom(sess.MeetingID), wire.MustEncode(wire.KindCandidateStatus, wire.CandidateStatus{
		Joined:           true,
		CandidateName:    name,
		MonitoringActive: true,
	}))
	s.logger.Info(ctx, "candidate connected", logger.MeetingID(sess.MeetingID), logger.SessionID(sess.ID))
	return nil
}

func (s *Service) relayCode(ctx context.Context, c Conn, p *model.CodeUpdate) error {
	sess, ok, err := s.resolve(ctx, c, p.SessionID, wire.KindCodeUpdate)
	if !ok || err != nil {
		return err
	}
	if c.Claims.Role != call.RoleCandidate {
		return s.reject(ctx, wire.KindCodeUpdate, c.Claims.Role)
	}
	out := *p
	out.SessionID = sess.ID
	out.CharCount = utf8.RuneCountInString(p.Code)
	out.Timestamp = s.clock.Now().UTC()
	s.hub.Publish(ctx, transport.ObserverRoom(sess.MeetingID), wire.MustEncode(wire.KindCodeUpdate, out))
	metrics.RecordRelayMessage(string(wire.KindCodeUpdate), relayForwarded)
	return nil
}

func (s *Service) relayAnswer(ctx context.Context, c Conn, p *wire.AnswerSubmitted) error {
	sess, ok, err := s.resolve(ctx, c, p.SessionID, wire.KindAnswerSubmitted)
	if !ok || err != nil {
		return err
	}
	if c.Claims.Role != call.RoleCandidate {
		return s.reject(ctx, wire.KindAnswerSubmitted, c.Claims.Role)
	}
	now := s.clock.Now().UTC()
	rec := model.EventRecord{
		ID:         s.newID(),
		SessionID:  sess.ID,
		EventType:  model.EventAnswerSubmitted,
		Timestamp:  now,
		ReceivedAt: now,
		Severity:   model.SeverityLow,
		Metadata: map[string]any{
			"question_index": p.QuestionIndex,
			"word_count":     len(strings.Fields(p.Answer)),
		},
	}
	s.hub.Publish(ctx, transport.ObserverRoom(sess.MeetingID), wire.MustEncode(wire.KindLiveEventUpdate, rec))
	metrics.RecordRelayMessage(string(wire.KindAnswerSubmitted), relayForwarded)
	return nil
}

func (s *Service) pushQuestion(ctx context.Context, c Conn, p *wire.PushQuestion) error {
	if c.Claims.Role != call.RoleObserver {
		return s.reject(ctx, wire.KindPushQuestion, c.Claims.Role)
	}
	sess, ok, err := s.resolve(ctx, c, p.SessionID, wire.KindPushQuestion)
	if !ok || err != nil {
		return err
	}
	challenge := p.Challenge
	if challenge.ID == "" {
		challenge.ID = s.newID()
	}
	s.hub.Publish(ctx, transport.CandidateRoom(sess.ID), wire.MustEncode(wire.KindQuestionPushed, challenge))
	metrics.RecordRelayMessage(string(wire.KindPushQuestion), relayForwarded)
	s.logger.Info(ctx, "question pushed",
		logger.SessionID(sess.ID),
		logger.String("title", challenge.Title),
	)
	return nil
}

func (s *Service) endFromClient(ctx context.Context, c Conn, p *wire.SessionEnd) error {
	sess, ok, err := s.resolve(ctx, c, p.SessionID, wire.KindSessionEnd)
	if !ok || err != nil {
		return err
	}
	_, err = s.EndSession(ctx, sess.ID)
	if errors.Is(err, repository.ErrSessionEnded) {
		return nil
	}
	return err
}

// relaySignal forwards call signaling between the two rooms of a
// session. The observer initiates the primary channel and the candidate
// initiates screen share; anything else is rejected.
func (s *Service) relaySignal(ctx context.Context, c Conn, k wire.Kind, p *wire.Signal) error {
	role := c.Claims.Role
	var (
		from = role
		to   call.Role
		out  = k
	)
	switch k {
	case wire.KindCallReady:
		from, to, out = call.RoleCandidate, call.RoleObserver, wire.KindPeerCallReady
	case wire.KindOffer, wire.KindScreenAnswer:
		from, to = call.RoleObserver, call.RoleCandidate
	case wire.KindAnswer, wire.KindScreenOffer, wire.KindScreenStopped:
		from, to = call.RoleCandidate, call.RoleObserver
	case wire.KindICE, wire.KindScreenICE:
		to = p.Target
		if to == role {
			return s.reject(ctx, k, role)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnhandled, k)
	}
	if role != from {
		return s.reject(ctx, k, role)
	}

	sess, ok, err := s.resolve(ctx, c, p.SessionID, k)
	if !ok || err != nil {
		return err
	}

	relayed := *p
	relayed.MeetingID = sess.MeetingID
	relayed.SessionID = sess.ID
	relayed.Target = to

	room := transport.CandidateRoom(sess.ID)
	if to == call.RoleObserver {
		room = transport.ObserverRoom(sess.MeetingID)
	}
	s.hub.Publish(ctx, room, wire.MustEncode(out, relayed))
	metrics.RecordRelayMessage(string(k), relayForwarded)
	return nil
}

// resolve finds the session a message is about and checks the sender may
// speak for it. ok is false when the message must be dropped because the
// session ended.
func (s *Service) resolve(ctx context.Context, c Conn, sessionID string, k wire.Kind) (model.Session, bool, error) {
	var (
		sess model.Session
		err  error
	)
	switch {
	case sessionID != "":
		sess, err = s.store.GetSession(ctx, sessionID)
	case c.Claims.Role == call.RoleCandidate:
		sess, err = s.store.GetSession(ctx, c.Claims.SessionID)
	default:
		sess, err = s.store.LatestSession(ctx, c.Claims.MeetingID)
	}
	if err != nil {
		metrics.RecordRelayMessage(string(k), relayRejected)
		return model.Session{}, false, fmt.Errorf("%s: %w", k, err)
	}

	allowed := false
	switch c.Claims.Role {
	case call.RoleCandidate:
		allowed = c.Claims.CanAct(sess.ID)
	case call.RoleObserver:
		allowed = c.Claims.CanObserve(sess.MeetingID)
	}
	if !allowed {
		metrics.RecordRelayMessage(string(k), relayRejected)
		return model.Session{}, false, fmt.Errorf("%w: %s for session %s", ErrForbidden, k, sess.ID)
	}

	if sess.Ended() {
		metrics.RecordRelayMessage(string(k), relayDropped)
		s.logger.Info(ctx, "message for ended session dropped",
			logger.SessionID(sess.ID),
			logger.String("kind", string(k)),
		)
		return sess, false, nil
	}
	return sess, true, nil
}

func (s *Service) reject(ctx context.Context, k wire.Kind, role call.Role) error {
	metrics.RecordRelayMessage(string(k), relayRejected)
	s.logger.Warn(ctx, "message from wrong role dropped",
		logger.String("kind", string(k)),
		logger.String("role", string(role)),
	)
	return fmt.Errorf("%w: %s from %s", ErrWrongRole, k, role)
}
