package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/vigil/internal/adapters/cache"
	"github.com/okian/vigil/internal/adapters/mq/queue"
	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/adapters/transport"
	"github.com/okian/vigil/internal/adapters/wire"
	"github.com/okian/vigil/internal/domain/alerts"
	"github.com/okian/vigil/internal/domain/dedupe"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/scoring"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// SubmitSignal accepts a behavior signal for sessionID. A non-empty nonce
// makes retries idempotent: a second delivery with the same nonce returns
// nil without effect. Signals for ended sessions return
// repository.ErrSessionEnded and are never applied.
func (s *Service) SubmitSignal(ctx context.Context, sessionID, nonce string, sig model.Signal) error {
	if !s.isStarted() {
		return ErrNotStarted
	}
	if sig.EventType == "" || !sig.Severity.Valid() {
		metrics.RecordSignalDropped(metrics.DropInvalid)
		return fmt.Errorf("%w: type %q severity %q", ErrInvalidSignal, sig.EventType, sig.Severity)
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	if sess.Ended() {
		metrics.RecordSignalDropped(metrics.DropSessionEnded)
		s.logger.Info(ctx, "signal after session end dropped",
			logger.SessionID(sessionID),
			logger.String("event_type", string(sig.EventType)),
		)
		return fmt.Errorf("session %s: %w", sessionID, repository.ErrSessionEnded)
	}

	key := dedupe.Key(sessionID, nonce)
	if key != "" && s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordSignalDropped(metrics.DropDuplicate)
		s.logger.Debug(ctx, "duplicate signal acknowledged",
			logger.SessionID(sessionID),
			logger.String("nonce", nonce),
		)
		return nil
	}

	now := s.clock.Now().UTC()
	if sig.Timestamp.IsZero() {
		sig.Timestamp = now
	}
	err = s.queue.Enqueue(ctx, queue.Event{
		SessionID:  sessionID,
		Nonce:      nonce,
		Signal:     sig,
		ReceivedAt: now,
	})
	if err != nil {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		metrics.RecordSignalDropped(metrics.DropBackpressure)
		return fmt.Errorf("%w: %w", ErrBackpressure, err)
	}
	metrics.UpdateDedupeSize(s.deduper.Size())
	return nil
}

// Process applies one sequenced submission: persist, rescore from the
// full history, then publish to the observer and warn the candidate. It
// runs on the session's shard worker, so calls for one session never
// overlap.
func (s *Service) Process(ctx context.Context, e queue.Event) error { //nolint:gocritic // hugeParam
	start := time.Now()

	sess, err := s.store.GetSession(ctx, e.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	rec, err := s.store.CreateEventLog(ctx, e.SessionID, e.Signal, e.ReceivedAt)
	if errors.Is(err, repository.ErrSessionEnded) {
		metrics.RecordSignalDropped(metrics.DropSessionEnded)
		s.logger.Info(ctx, "queued signal dropped after session end", logger.SessionID(e.SessionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("persist event: %w", err)
	}

	history, err := s.store.GetEventsBySession(ctx, e.SessionID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	score := scoring.Score(history)
	update := model.ScoreUpdate{
		AuthenticityScore: score,
		SuspicionDelta:    scoring.EvaluateEvent(rec.EventType),
		TotalEvents:       len(history),
	}

	if err := s.store.UpdateSessionScore(ctx, e.SessionID, score); err != nil {
		if errors.Is(err, repository.ErrSessionEnded) {
			// The session ended after rec was stored; its frozen score
			// already counts rec.
			s.logger.Debug(ctx, "session ended while scoring",
				logger.SessionID(e.SessionID),
				logger.String("event_type", string(rec.EventType)),
			)
			return nil
		}
		return fmt.Errorf("update score: %w", err)
	}
	metrics.RecordSignalAccepted(string(rec.EventType))
	metrics.RecordScoreLatency(float64(time.Since(start).Microseconds()) / 1000)

	observers := transport.ObserverRoom(sess.MeetingID)
	s.hub.Publish(ctx, observers, wire.MustEncode(wire.KindLiveEventUpdate, rec))
	s.hub.Publish(ctx, observers, wire.MustEncode(wire.KindScoreUpdate, update))
	if alert, ok := alerts.FromRecord(rec); ok {
		metrics.RecordAlert(string(alert.Severity))
		s.hub.Publish(ctx, observers, wire.MustEncode(wire.KindCheatAlert, alert))
	}
	if rec.Severity.Elevated() {
		s.hub.Publish(ctx, transport.CandidateRoom(e.SessionID), wire.MustEncode(wire.KindWarning, wire.Notice{
			Message: fmt.Sprintf("Warning: Suspicious behavior detected (%s)", rec.EventType),
		}))
	}

	s.cacheScore(ctx, e.SessionID, score, len(history), false)
	if s.audit != nil {
		s.audit.Export(sess.MeetingID, rec)
	}
	return nil
}

func (s *Service) cacheScore(ctx context.Context, sessionID string, score, total int, ended bool) {
	if s.scores == nil {
		return
	}
	err := s.scores.Put(ctx, cache.ScoreSnapshot{
		SessionID:         sessionID,
		AuthenticityScore: score,
		Tier:              scoring.ClassifyScore(score),
		TotalEvents:       total,
		Ended:             ended,
	})
	if err != nil {
		s.logger.Warn(ctx, "score cache write failed", logger.SessionID(sessionID), logger.Error(err))
	}
}
