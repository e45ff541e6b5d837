// Package audit exports accepted event records to Kafka for downstream
// review. Export never blocks the pipeline; records are dropped when the
// buffer is full.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

const (
	defaultBuffer    = 1024
	defaultBatchSize = 100
	defaultFlush     = time.Second
)

// Writer is the part of kafka.Writer the exporter uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Record is the exported form of an accepted event.
type Record struct {
	MeetingID string            `json:"meeting_id"`
	Event     model.EventRecord `json:"event"`
}

// Exporter batches records onto a Writer.
type Exporter struct {
	w         Writer
	records   chan Record
	batchSize int
	flush     time.Duration
	logger    logger.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewKafka returns an exporter writing to topic on brokers, keyed by
// session id so a session's records stay on one partition.
func NewKafka(brokers []string, topic string, opts ...Option) *Exporter {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return New(w, opts...)
}

// New returns an exporter writing to w.
func New(w Writer, opts ...Option) *Exporter {
	e := &Exporter{
		w:         w,
		batchSize: defaultBatchSize,
		flush:     defaultFlush,
		logger:    logger.Get(),
		done:      make(chan struct{}),
	}
	buffer := defaultBuffer
	for _, opt := range opts {
		opt(e, &buffer)
	}
	e.records = make(chan Record, buffer)
	e.logger = e.logger.Named("audit")
	return e
}

// Export queues rec. It returns false when the record was dropped.
func (e *Exporter) Export(meetingID string, rec model.EventRecord) bool {
	select {
	case e.records <- Record{MeetingID: meetingID, Event: rec}:
		return true
	default:
		metrics.RecordAuditExport("dropped")
		return false
	}
}

// Run writes queued records until ctx is cancelled, then flushes what is
// left and closes the writer.
func (e *Exporter) Run(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.flush)
	defer ticker.Stop()

	batch := make([]kafka.Message, 0, e.batchSize)
	write := func(wctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := e.w.WriteMessages(wctx, batch...); err != nil {
			metrics.RecordAuditExport("error")
			e.logger.Warn(wctx, "audit write failed", logger.Int("records", len(batch)), logger.Error(err))
		} else {
			for range batch {
				metrics.RecordAuditExport("ok")
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-e.records:
			msg, err := encode(rec)
			if err != nil {
				metrics.RecordAuditExport("error")
				e.logger.Error(ctx, "audit encode failed", logger.Error(err))
				continue
			}
			batch = append(batch, msg)
			if len(batch) >= e.batchSize {
				write(ctx)
			}
		case <-ticker.C:
			write(ctx)
		case <-ctx.Done():
			e.drain(&batch)
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			write(fctx)
			cancel()
			if err := e.w.Close(); err != nil {
				e.logger.Warn(fctx, "audit writer close failed", logger.Error(err))
			}
			return
		}
	}
}

// Done is closed when Run returns.
func (e *Exporter) Done() <-chan struct{} { return e.done }

func (e *Exporter) drain(batch *[]kafka.Message) {
	for {
		select {
		case rec := <-e.records:
			if msg, err := encode(rec); err == nil {
				*batch = append(*batch, msg)
			}
		default:
			return
		}
	}
}

func encode(rec Record) (kafka.Message, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(rec.Event.SessionID),
		Value: b,
		Time:  rec.Event.ReceivedAt,
	}, nil
}
