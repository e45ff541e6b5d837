package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/vigil/internal/domain/model"
)

func submission(session, nonce string) Event {
	return Event{
		SessionID: session,
		Nonce:     nonce,
		Signal:    model.Signal{EventType: model.EventTabSwitch, Severity: model.SeverityHigh},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if err := q.Enqueue(ctx, submission("s1", "n1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	e := <-q.Dequeue(ctx)
	if e.Nonce != "n1" {
		t.Errorf("expected n1, got %q", e.Nonce)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, submission("s1", fmt.Sprint(i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := q.Enqueue(ctx, submission("s1", "overflow")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
}

func TestInMemoryQueue_Order(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := q.Enqueue(ctx, submission("s1", fmt.Sprint(i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	_ = q.Close()

	i := 0
	for e := range q.Dequeue(ctx) {
		if e.Nonce != fmt.Sprint(i) {
			t.Fatalf("position %d: got nonce %q", i, e.Nonce)
		}
		i++
	}
	if i != 50 {
		t.Errorf("expected 50 events after close, got %d", i)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Enqueue(ctx, submission("s1", "n")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected closed dequeue channel")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel not closed")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, submission("s1", "n")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSharded_StableRouting(t *testing.T) {
	s := NewSharded(8, WithCapacity(10))
	ctx := context.Background()

	shard := s.ShardFor("session-42")
	for i := 0; i < 5; i++ {
		if got := s.ShardFor("session-42"); got != shard {
			t.Fatalf("shard changed from %d to %d", shard, got)
		}
		if err := s.Enqueue(ctx, submission("session-42", fmt.Sprint(i))); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if n := s.Shards()[shard].Len(ctx); n != 5 {
		t.Errorf("expected 5 events on shard %d, got %d", shard, n)
	}
	if n := s.Len(ctx); n != 5 {
		t.Errorf("expected total 5, got %d", n)
	}
}

func TestSharded_Defaults(t *testing.T) {
	s := NewSharded(0)
	if len(s.Shards()) != 1 {
		t.Errorf("expected one shard, got %d", len(s.Shards()))
	}
	if s.ShardFor("anything") != 0 {
		t.Error("single shard must route to 0")
	}
	_ = s.Close()
	if !s.Shards()[0].IsClosed() {
		t.Error("expected shard closed")
	}
}
