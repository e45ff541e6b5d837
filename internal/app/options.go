package service

import (
	"time"

	"github.com/okian/vigil/internal/adapters/cache"
	"github.com/okian/vigil/pkg/clock"
	"github.com/okian/vigil/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of sequencer shards and workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of each shard queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many retry nonces are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTokens sets the room token issuer.
func WithTokens(t Tokens) Option {
	return func(s *Service) {
		s.tokens = t
	}
}

// WithScoreCache enables the score snapshot cache.
func WithScoreCache(c *cache.ScoreCache) Option {
	return func(s *Service) {
		s.scores = c
	}
}

// WithAudit enables export of accepted events.
func WithAudit(e Exporter) Option {
	return func(s *Service) {
		s.audit = e
	}
}

// WithPublicURL sets the base URL used for join links.
func WithPublicURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.publicURL = u
		}
	}
}

// WithMaxSessionDuration sets how long a session may stay open before the
// reaper ends it. Zero disables reaping.
func WithMaxSessionDuration(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.maxSessionDuration = d
		}
	}
}

// WithReaperSchedule sets the cron spec of the reaper.
func WithReaperSchedule(spec string) Option {
	return func(s *Service) {
		s.reaperSchedule = spec
	}
}

// WithIDGenerator replaces the meeting and session id generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) {
		if f != nil {
			s.newID = f
		}
	}
}
