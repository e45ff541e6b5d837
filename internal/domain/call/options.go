package call

import (
	"time"

	"github.com/okian/vigil/pkg/logger"
)

// Default bounds for blocking call steps.
const (
	DefaultMediaTimeout     = 10 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithLogger sets the endpoint logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Endpoint) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMediaTimeout bounds media acquisition.
func WithMediaTimeout(d time.Duration) Option {
	return func(e *Endpoint) {
		if d > 0 {
			e.mediaTimeout = d
		}
	}
}

// WithHandshakeTimeout bounds peer creation and offer/answer generation.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(e *Endpoint) {
		if d > 0 {
			e.handshakeTimeout = d
		}
	}
}

// OnLocalStream registers the callback for acquired local media.
func OnLocalStream(fn func(Channel, *Stream)) Option {
	return func(e *Endpoint) { e.onLocal = fn }
}

// OnRemoteStream registers the callback for media received from the peer.
func OnRemoteStream(fn func(Channel, *Stream)) Option {
	return func(e *Endpoint) { e.onRemote = fn }
}

// OnState registers the callback for channel state changes.
func OnState(fn func(Channel, State)) Option {
	return func(e *Endpoint) { e.onState = fn }
}
