package audit

import (
	"time"

	"github.com/okian/vigil/pkg/logger"
)

// Option configures an Exporter.
type Option func(e *Exporter, buffer *int)

// WithBuffer sets how many records may wait for export.
func WithBuffer(n int) Option {
	return func(_ *Exporter, buffer *int) {
		if n > 0 {
			*buffer = n
		}
	}
}

// WithBatch sets the batch size and the flush interval.
func WithBatch(size int, flush time.Duration) Option {
	return func(e *Exporter, _ *int) {
		if size > 0 {
			e.batchSize = size
		}
		if flush > 0 {
			e.flush = flush
		}
	}
}

// WithLogger sets the exporter logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Exporter, _ *int) {
		if l != nil {
			e.logger = l
		}
	}
}
