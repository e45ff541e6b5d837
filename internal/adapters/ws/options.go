package ws

import (
	"time"

	"github.com/okian/vigil/pkg/logger"
)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithReadLimit bounds the size of one inbound frame.
func WithReadLimit(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

// WithWriteTimeout bounds a single frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithOriginPatterns allows cross-origin upgrades from the given host
// patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) {
		h.origins = append(h.origins, patterns...)
	}
}
