package rtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/okian/vigil/pkg/logger"
)

// Option configures a Factory.
type Option func(*Factory, *webrtc.SettingEngine)

// WithLogger sets the factory logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Factory, _ *webrtc.SettingEngine) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithLoopback includes loopback ICE candidates, for same-host peers and
// tests.
func WithLoopback() Option {
	return func(_ *Factory, s *webrtc.SettingEngine) {
		s.SetIncludeLoopbackCandidate(true)
	}
}
