package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/vigil/internal/adapters/wire"
	"github.com/okian/vigil/internal/domain/detect"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
)

// Report is the outcome of one replay.
type Report struct {
	Trace     string
	MeetingID string
	SessionID string

	// Signals counts what the detectors emitted; Failed counts the ones
	// that could not be submitted.
	Signals   int
	Failed    int
	Detectors map[string]detect.Status

	Score  Score
	Alerts []model.CheatAlert

	ObserverFrames  map[wire.Kind]int
	CandidateFrames map[wire.Kind]int

	Duration time.Duration
}

// Verify checks the report against e and returns every miss.
func (r *Report) Verify(e Expect) error {
	var errs []error
	if e.MinScore != nil && r.Score.AuthenticityScore < *e.MinScore {
		errs = append(errs, fmt.Errorf("score %d below %d", r.Score.AuthenticityScore, *e.MinScore))
	}
	if e.MaxScore != nil && r.Score.AuthenticityScore > *e.MaxScore {
		errs = append(errs, fmt.Errorf("score %d above %d", r.Score.AuthenticityScore, *e.MaxScore))
	}
	if e.Alerts != nil && len(r.Alerts) != *e.Alerts {
		errs = append(errs, fmt.Errorf("got %d alerts, want %d", len(r.Alerts), *e.Alerts))
	}
	if e.Events != nil && r.Score.TotalEvents != *e.Events {
		errs = append(errs, fmt.Errorf("got %d events, want %d", r.Score.TotalEvents, *e.Events))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrExpectation, errors.Join(errs...))
	}
	return nil
}

// Log writes the report to l.
func (r *Report) Log(ctx context.Context, l logger.Logger) {
	l.Info(ctx, "replay finished",
		logger.String("trace", r.Trace),
		logger.MeetingID(r.MeetingID),
		logger.SessionID(r.SessionID),
		logger.Int("signals", r.Signals),
		logger.Int("failed", r.Failed),
		logger.Int("score", r.Score.AuthenticityScore),
		logger.String("tier", string(r.Score.Tier)),
		logger.Int("events", r.Score.TotalEvents),
		logger.Int("alerts", len(r.Alerts)),
		logger.Bool("ended", r.Score.Ended),
		logger.Duration("duration", r.Duration),
		logger.Any("detectors", r.Detectors),
		logger.Any("observer_frames", r.ObserverFrames))

	for _, a := range r.Alerts {
		l.Debug(ctx, "alert",
			logger.String("event_type", string(a.EventType)),
			logger.String("severity", string(a.Severity)),
			logger.String("message", a.Message))
	}
}

// frameCounter counts received frames by kind.
type frameCounter struct {
	mu     sync.Mutex
	counts map[wire.Kind]int
}

func newFrameCounter() *frameCounter {
	return &frameCounter{counts: make(map[wire.Kind]int)}
}

func (c *frameCounter) observe(m wire.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[m.Kind]++
}

func (c *frameCounter) snapshot() map[wire.Kind]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[wire.Kind]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
