// Package worker runs the per-shard sequencers that apply accepted
// submissions in arrival order.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/vigil/internal/adapters/mq/queue"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Event is what workers read off the queue.
type Event = queue.Event

// Handler applies one submission. Errors are logged and counted; the
// worker moves on to the next event.
type Handler interface {
	Process(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e Event) error

// Process implements Handler.
func (f HandlerFunc) Process(ctx context.Context, e Event) error { return f(ctx, e) } //nolint:gocritic // hugeParam

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes one queue sequentially.
type Worker struct {
	queue   Queue
	handler Handler
	name    string
	logger  logger.Logger

	shutdown chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a worker draining q into h.
func New(q Queue, h Handler, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		handler:  h,
		name:     "worker",
		logger:   logger.Get(),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes events until ctx is cancelled, Shutdown is called, or the
// queue is closed and drained.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, e)
		}
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Shutdown stops the worker and waits for Run to return.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *Worker) process(ctx context.Context, e Event) { //nolint:gocritic // hugeParam
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.handler.Process(ctx, e); err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "processing failed",
			logger.SessionID(e.SessionID),
			logger.String("event_type", string(e.Signal.EventType)),
			logger.Error(err),
		)
	}
}

// Pool runs one worker per shard of a sharded queue.
type Pool struct {
	queue   *queue.Sharded
	workers []*Worker
	logger  logger.Logger
}

// NewPool creates a worker for every shard of q.
func NewPool(q *queue.Sharded, h Handler, opts ...Option) *Pool {
	p := &Pool{queue: q, logger: logger.Get().Named("worker-pool")}
	for i, shard := range q.Shards() {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers = append(p.workers, New(shard, h, wopts...))
	}
	metrics.UpdateWorkerCount(len(p.workers))
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d: %w", i, ctx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
