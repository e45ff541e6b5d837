package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	service "github.com/okian/vigil/internal/app"

	"github.com/okian/vigil/internal/adapters/cache"
	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/adapters/transport"
	"github.com/okian/vigil/internal/adapters/wire"
	"github.com/okian/vigil/internal/auth"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/clock"
	"github.com/okian/vigil/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingExporter struct {
	mu      sync.Mutex
	records []model.EventRecord
}

func (e *recordingExporter) Export(_ string, rec model.EventRecord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, rec)
	return true
}

func (e *recordingExporter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

type fixture struct {
	svc    *service.Service
	store  *repository.MemoryStore
	hub    *transport.Hub
	clk    *clock.FakeClock
	signer *auth.Signer
	scores *cache.ScoreCache
	audit  *recordingExporter
}

func newFixture(opts ...service.Option) *fixture {
	return newWrappedFixture(nil, opts...)
}

// newWrappedFixture builds the service over wrap(store) when wrap is set.
func newWrappedFixture(wrap func(*repository.MemoryStore) repository.Store, opts ...service.Option) *fixture {
	var n atomic.Int64
	f := &fixture{
		store: repository.NewMemoryStore(),
		hub:   transport.NewHub(transport.WithBuffer(64), transport.WithLogger(logger.Nop())),
		clk:   clock.Fake(epoch),
		audit: &recordingExporter{},
	}
	signer, err := auth.NewSigner("test-secret", time.Hour, f.clk)
	if err != nil {
		panic(err)
	}
	f.signer = signer
	f.scores = cache.NewScoreCache(cache.NewMemoryStore(f.clk.Now), time.Minute)

	base := []service.Option{
		service.WithLogger(logger.Nop()),
		service.WithClock(f.clk),
		service.WithWorkerCount(4),
		service.WithQueueSize(128),
		service.WithTokens(signer),
		service.WithScoreCache(f.scores),
		service.WithAudit(f.audit),
		service.WithPublicURL("https://vigil.test/"),
		service.WithReaperSchedule(""),
		service.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", n.Add(1)) }),
	}
	var store repository.Store = f.store
	if wrap != nil {
		store = wrap(f.store)
	}
	f.svc = service.New(store, f.hub, append(base, opts...)...)
	return f
}

// setup creates a meeting with a joined candidate and returns connections
// for both sides already in their rooms.
func (f *fixture) setup(ctx context.Context) (service.CreatedMeeting, service.JoinedMeeting, service.Conn, service.Conn) {
	created, err := f.svc.CreateMeeting(ctx, "Rita Recruiter")
	if err != nil {
		panic(err)
	}
	joined, err := f.svc.JoinMeeting(ctx, created.Meeting.ID, "Carl Candidate")
	if err != nil {
		panic(err)
	}
	obs := f.conn(created.ObserverToken)
	cand := f.conn(joined.CandidateToken)
	if err := f.svc.Dispatch(ctx, obs, wire.Message{
		Kind:    wire.KindObserverSubscribe,
		Payload: &wire.ObserverSubscribe{MeetingID: created.Meeting.ID},
	}); err != nil {
		panic(err)
	}
	if err := f.svc.Dispatch(ctx, cand, wire.Message{
		Kind:    wire.KindCandidateJoined,
		Payload: &wire.CandidateJoined{MeetingID: created.Meeting.ID, SessionID: joined.Session.ID},
	}); err != nil {
		panic(err)
	}
	drain(obs.Member)
	return created, joined, obs, cand
}

func (f *fixture) conn(token string) service.Conn {
	claims, err := f.signer.Verify(token)
	if err != nil {
		panic(err)
	}
	return service.Conn{Claims: claims, Member: f.hub.Connect()}
}

func signal(t model.EventType, sev model.Severity) model.Signal {
	return model.Signal{EventType: t, Severity: sev, Timestamp: epoch}
}

// next waits for the next frame delivered to m.
func next(m *transport.Member) (wire.Message, bool) {
	select {
	case frame := <-m.Outbound():
		msg, err := wire.Decode(frame)
		if err != nil {
			panic(err)
		}
		return msg, true
	case <-time.After(2 * time.Second):
		return wire.Message{}, false
	}
}

// nextOf skips frames until one of kind k arrives.
func nextOf(m *transport.Member, k wire.Kind) (wire.Message, bool) {
	for {
		msg, ok := next(m)
		if !ok || msg.Kind == k {
			return msg, ok
		}
	}
}

func drain(m *transport.Member) []wire.Kind {
	var out []wire.Kind
	for {
		select {
		case frame := <-m.Outbound():
			msg, err := wire.Decode(frame)
			if err != nil {
				panic(err)
			}
			out = append(out, msg.Kind)
		default:
			return out
		}
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
