package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vigil/internal/adapters/mq/audit"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func record(session string, seq int64) model.EventRecord {
	return model.EventRecord{
		ID:         "r" + session,
		SessionID:  session,
		Seq:        seq,
		EventType:  model.EventTabSwitch,
		Severity:   model.SeverityHigh,
		ReceivedAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestExporter(t *testing.T) {
	Convey("Given an exporter with a small batch", t, func() {
		w := &fakeWriter{}
		e := audit.New(w, audit.WithBatch(2, time.Hour), audit.WithBuffer(8), audit.WithLogger(logger.Nop()))
		ctx, cancel := context.WithCancel(context.Background())

		Convey("Full batches are written keyed by session", func() {
			go e.Run(ctx)
			So(e.Export("m1", record("s1", 1)), ShouldBeTrue)
			So(e.Export("m1", record("s1", 2)), ShouldBeTrue)

			deadline := time.Now().Add(2 * time.Second)
			for len(w.written()) < 2 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			msgs := w.written()
			So(msgs, ShouldHaveLength, 2)
			So(string(msgs[0].Key), ShouldEqual, "s1")

			var got audit.Record
			So(json.Unmarshal(msgs[1].Value, &got), ShouldBeNil)
			So(got.MeetingID, ShouldEqual, "m1")
			So(got.Event.Seq, ShouldEqual, 2)

			cancel()
			<-e.Done()
		})

		Convey("Pending records are flushed on shutdown", func() {
			So(e.Export("m1", record("s1", 1)), ShouldBeTrue)
			cancel()
			e.Run(ctx)

			So(w.written(), ShouldHaveLength, 1)
			So(w.closed, ShouldBeTrue)
		})

		Convey("A full buffer drops records", func() {
			for i := 0; i < 8; i++ {
				So(e.Export("m1", record("s1", int64(i))), ShouldBeTrue)
			}
			So(e.Export("m1", record("s1", 9)), ShouldBeFalse)
			cancel()
			e.Run(ctx)
		})

		Convey("Write failures are survived", func() {
			w.fail = errors.New("broker down")
			So(e.Export("m1", record("s1", 1)), ShouldBeTrue)
			cancel()
			e.Run(ctx)
			So(w.written(), ShouldBeEmpty)
			So(w.closed, ShouldBeTrue)
		})

		Reset(cancel)
	})
}
