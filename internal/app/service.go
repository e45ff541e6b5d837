// Package service wires the proctoring pipeline: it accepts behavior
// signals, sequences them per session, keeps scores current, relays
// session traffic between the two parties and ends stale sessions.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/okian/vigil/internal/adapters/cache"
	"github.com/okian/vigil/internal/adapters/mq/queue"
	"github.com/okian/vigil/internal/adapters/mq/worker"
	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/adapters/transport"
	"github.com/okian/vigil/internal/domain/dedupe"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/clock"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Defaults.
const (
	DefaultQueueSize          = 10000
	DefaultDedupeSize         = dedupe.DefaultMaxSize
	DefaultMaxSessionDuration = 3 * time.Hour
	DefaultReaperSchedule     = "@every 1m"
	DefaultPublicURL          = "http://localhost:9080"
)

// Hub is the room fan-out the service publishes through.
type Hub interface {
	Join(m *transport.Member, room transport.Room) *transport.Subscription
	Publish(ctx context.Context, room transport.Room, frame []byte) int
}

// Tokens issues room tokens for new meetings and sessions.
type Tokens interface {
	ObserverToken(meetingID string) (string, error)
	CandidateToken(meetingID, sessionID string) (string, error)
}

// Exporter receives every accepted event record.
type Exporter interface {
	Export(meetingID string, rec model.EventRecord) bool
}

// Service implements the operations behind the HTTP API and the
// websocket endpoint.
type Service struct {
	mu sync.RWMutex

	store  repository.Store
	hub    Hub
	tokens Tokens
	scores *cache.ScoreCache
	audit  Exporter

	deduper dedupe.Deduper
	queue   *queue.Sharded
	pool    *worker.Pool
	cron    *cron.Cron

	workerCount        int
	queueSize          int
	dedupeSize         int
	maxSessionDuration time.Duration
	reaperSchedule     string
	publicURL          string

	clock  clock.Clock
	newID  func() string
	logger logger.Logger

	started bool
}

// New constructs a Service over store and hub.
func New(store repository.Store, hub Hub, opts ...Option) *Service {
	s := &Service{
		store:              store,
		hub:                hub,
		workerCount:        runtime.NumCPU(),
		queueSize:          DefaultQueueSize,
		dedupeSize:         DefaultDedupeSize,
		maxSessionDuration: DefaultMaxSessionDuration,
		reaperSchedule:     DefaultReaperSchedule,
		publicURL:          DefaultPublicURL,
		clock:              clock.Real(),
		newID:              uuid.NewString,
		logger:             logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("service")
	return s
}

// Start builds the sequencer and starts the workers and the reaper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	var reaper *cron.Cron
	if s.maxSessionDuration > 0 && s.reaperSchedule != "" {
		reaper = cron.New()
		if _, err := reaper.AddFunc(s.reaperSchedule, func() {
			if _, err := s.ReapStale(context.Background()); err != nil {
				s.logger.Error(context.Background(), "reaper run failed", logger.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("%w: reaper schedule %q: %w", ErrInvalidInput, s.reaperSchedule, err)
		}
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewSharded(s.workerCount, queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.queue, worker.HandlerFunc(s.Process), worker.WithLogger(s.logger))
	s.pool.Start(context.WithoutCancel(ctx))

	if reaper != nil {
		reaper.Start()
		s.cron = reaper
	}

	s.started = true
	s.logger.Info(ctx, "proctoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Duration("max_session_duration", s.maxSessionDuration),
	)
	return nil
}

// Stop drains queued signals and stops the reaper.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "proctoring service stopped")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		metrics.UpdateDedupeSize(s.deduper.Size())
	}
	if active, err := s.store.ActiveSessions(ctx); err == nil {
		stats["activeSessions"] = len(active)
		metrics.UpdateSessionsActive(len(active))
	}
	return stats
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
