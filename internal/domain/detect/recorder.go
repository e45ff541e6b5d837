package detect

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
)

// Submitter forwards a signal to the server. The nonce makes retries of
// the same delivery idempotent.
type Submitter interface {
	SubmitSignal(ctx context.Context, sessionID, nonce string, sig model.Signal) error
}

// Stamped is a signal with the nonce it was submitted under.
type Stamped struct {
	Nonce  string
	Signal model.Signal
}

// Recorder is a sink that stamps each signal with a fresh nonce, keeps a
// local copy and submits it.
type Recorder struct {
	sessionID string
	submit    Submitter
	logger    logger.Logger
	timeout   time.Duration

	mu       sync.Mutex
	recorded []Stamped
	failed   int
}

// NewRecorder returns a Recorder for sessionID. A nil submitter only
// records.
func NewRecorder(sessionID string, submit Submitter, opts ...Option) *Recorder {
	o := newOptions(0, opts)
	return &Recorder{
		sessionID: sessionID,
		submit:    submit,
		logger:    o.logger.Named("recorder"),
		timeout:   o.timeout,
	}
}

// Sink returns the recorder as a Sink.
func (r *Recorder) Sink() Sink { return r.Record }

// Record stamps and submits sig.
func (r *Recorder) Record(sig model.Signal) {
	st := Stamped{Nonce: uuid.NewString(), Signal: sig}
	r.mu.Lock()
	r.recorded = append(r.recorded, st)
	r.mu.Unlock()

	if r.submit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.submit.SubmitSignal(ctx, r.sessionID, st.Nonce, sig); err != nil {
		r.mu.Lock()
		r.failed++
		r.mu.Unlock()
		r.logger.Warn(ctx, "signal submit failed",
			logger.SessionID(r.sessionID),
			logger.String("event_type", string(sig.EventType)),
			logger.Error(err))
	}
}

// Recorded returns every stamped signal in emission order.
func (r *Recorder) Recorded() []Stamped {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stamped, len(r.recorded))
	copy(out, r.recorded)
	return out
}

// Failed returns the number of submissions that returned an error.
func (r *Recorder) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}
