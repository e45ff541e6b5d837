package transport

import "github.com/okian/vigil/pkg/logger"

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-member outbound buffer.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
