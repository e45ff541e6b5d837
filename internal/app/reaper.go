package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// ReapStale ends every session that has been open longer than the
// configured maximum duration and returns how many it ended.
func (s *Service) ReapStale(ctx context.Context) (int, error) {
	if s.maxSessionDuration <= 0 {
		return 0, nil
	}
	active, err := s.store.ActiveSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("active sessions: %w", err)
	}
	metrics.UpdateSessionsActive(len(active))

	cutoff := s.clock.Now().Add(-s.maxSessionDuration)
	var (
		reaped int
		errs   []error
	)
	for _, sess := range active {
		if !sess.StartedAt.Before(cutoff) {
			continue
		}
		final, err := s.EndSession(ctx, sess.ID)
		if errors.Is(err, repository.ErrSessionEnded) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reaped++
		metrics.RecordSessionReaped()
		s.logger.Info(ctx, "stale session reaped",
			logger.SessionID(sess.ID),
			logger.Duration("age", s.clock.Now().Sub(sess.StartedAt)),
			logger.Int("final_score", final),
		)
	}
	return reaped, errors.Join(errs...)
}
