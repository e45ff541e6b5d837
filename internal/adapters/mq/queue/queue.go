// Package queue holds accepted submissions until a worker sequences them.
//
// Queue is a single bounded FIFO. Sharded spreads sessions over several
// queues so one session always lands on the same queue.
package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Event is the payload flowing through the queue.
type Event = model.Submission

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event to the queue. It returns ErrFull or ErrClosed
	// without blocking when the event cannot be accepted.
	Enqueue(ctx context.Context, e Event) error

	// Dequeue returns a channel that receives events in enqueue order. The
	// channel is closed after Close once the queue drains.
	Dequeue(ctx context.Context) <-chan Event

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)
	return q
}

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		return err
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		return ErrFull
	}
}

// Dequeue returns a channel that will receive events as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for e := range q.events {
			select {
			case out <- e:
				metrics.RecordQueueDequeue()
				q.observe()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len(context.Context) int {
	return len(q.events)
}

// Capacity returns the configured bound.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops accepting events. Queued events are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	n := len(q.events)
	metrics.UpdateQueueSize(n)
	metrics.UpdateQueueUtilization(float64(n) / float64(q.capacity))
}

// Sharded routes each session to one of several queues. Events of a
// session keep their order while sessions on different shards proceed in
// parallel.
type Sharded struct {
	shards []*InMemoryQueue
}

// NewSharded creates n queues built with opts. n < 1 means one shard.
func NewSharded(n int, opts ...Option) *Sharded {
	if n < 1 {
		n = 1
	}
	s := &Sharded{shards: make([]*InMemoryQueue, n)}
	total := 0
	for i := range s.shards {
		s.shards[i] = NewInMemoryQueue(opts...)
		total += s.shards[i].capacity
	}
	metrics.UpdateQueueCapacity(total)
	return s
}

// ShardFor returns the shard index for sessionID.
func (s *Sharded) ShardFor(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(len(s.shards)))
}

// Enqueue adds e to its session's shard.
func (s *Sharded) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam
	return s.shards[s.ShardFor(e.SessionID)].Enqueue(ctx, e)
}

// Shards returns the underlying queues, one per worker.
func (s *Sharded) Shards() []*InMemoryQueue {
	return s.shards
}

// Len returns the number of events queued across shards.
func (s *Sharded) Len(ctx context.Context) int {
	n := 0
	for _, q := range s.shards {
		n += q.Len(ctx)
	}
	return n
}

// Close closes every shard.
func (s *Sharded) Close() error {
	for _, q := range s.shards {
		_ = q.Close()
	}
	return nil
}
