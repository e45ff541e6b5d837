package detect

import (
	"time"

	"github.com/okian/vigil/pkg/clock"
	"github.com/okian/vigil/pkg/logger"
)

// Default timings.
const (
	DefaultFaceInterval     = 2500 * time.Millisecond
	DefaultDevtoolsInterval = 1500 * time.Millisecond
	DefaultSampleTimeout    = 2 * time.Second
	DefaultLoadTimeout      = 30 * time.Second
	fullscreenRetryDelay    = 300 * time.Millisecond
)

type options struct {
	clock       clock.Clock
	logger      logger.Logger
	interval    time.Duration
	timeout     time.Duration
	loadTimeout time.Duration
}

// Option configures a detector, a Set or a Recorder.
type Option func(*options)

func newOptions(defaultInterval time.Duration, opts []Option) options {
	o := options{
		clock:       clock.Real(),
		logger:      logger.Nop(),
		interval:    defaultInterval,
		timeout:     DefaultSampleTimeout,
		loadTimeout: DefaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the clock used for timestamps and timers.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithInterval sets the sampling interval of polling detectors.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithTimeout bounds a single sample or submission.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLoadTimeout bounds face model loading.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.loadTimeout = d
		}
	}
}
