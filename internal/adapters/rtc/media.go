package rtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/okian/vigil/internal/domain/call"
)

// LocalTrack is a sample-fed local track. Samples written while the track
// is disabled or stopped are dropped.
type LocalTrack struct {
	kind   call.TrackKind
	sample *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
}

// ID implements call.Track.
func (t *LocalTrack) ID() string { return t.sample.ID() }

// Kind implements call.Track.
func (t *LocalTrack) Kind() call.TrackKind { return t.kind }

// Enabled implements call.Track.
func (t *LocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled && !t.stopped
}

// SetEnabled implements call.Track.
func (t *LocalTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Stop implements call.Track.
func (t *LocalTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// Stopped reports whether Stop was called.
func (t *LocalTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// WriteSample sends one encoded media sample.
func (t *LocalTrack) WriteSample(data []byte, d time.Duration) error {
	if !t.Enabled() {
		return nil
	}
	return t.sample.WriteSample(media.Sample{Data: data, Duration: d})
}

// SampleSource builds local tracks that callers feed with encoded samples.
// It implements call.MediaSource for endpoints that have no capture device.
type SampleSource struct {
	mu     sync.Mutex
	tracks []*LocalTrack
	deny   map[call.MediaKind]error
}

// NewSampleSource returns a SampleSource.
func NewSampleSource() *SampleSource {
	return &SampleSource{deny: make(map[call.MediaKind]error)}
}

// Deny makes Acquire of kind fail with err, as a denied permission would.
func (s *SampleSource) Deny(kind call.MediaKind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deny[kind] = err
}

// Acquire implements call.MediaSource. Camera media carries an Opus audio
// track and a VP8 video track; screen media a single VP8 track.
func (s *SampleSource) Acquire(ctx context.Context, kind call.MediaKind) (*call.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deny[kind]; err != nil {
		return nil, err
	}

	streamID := fmt.Sprintf("%s-%s", kind, uuid.NewString())
	stream := &call.Stream{ID: streamID}
	kinds := []call.TrackKind{call.TrackAudio, call.TrackVideo}
	if kind == call.MediaScreen {
		kinds = []call.TrackKind{call.TrackVideo}
	}
	for _, k := range kinds {
		capability := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}
		if k == call.TrackAudio {
			capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}
		}
		sample, err := webrtc.NewTrackLocalStaticSample(capability, string(k), streamID)
		if err != nil {
			return nil, fmt.Errorf("new %s track: %w", k, err)
		}
		t := &LocalTrack{kind: k, sample: sample, enabled: true}
		s.tracks = append(s.tracks, t)
		stream.Tracks = append(stream.Tracks, t)
	}
	return stream, nil
}

// Live returns the number of acquired tracks not yet stopped.
func (s *SampleSource) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tracks {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// remoteTrack adapts a received pion track to call.Track. Disabling it
// only affects local playback state.
type remoteTrack struct {
	remote *webrtc.TrackRemote

	mu      sync.Mutex
	enabled bool
}

func newRemoteTrack(r *webrtc.TrackRemote) *remoteTrack {
	return &remoteTrack{remote: r, enabled: true}
}

func (t *remoteTrack) ID() string { return t.remote.ID() }

func (t *remoteTrack) Kind() call.TrackKind {
	if t.remote.Kind() == webrtc.RTPCodecTypeAudio {
		return call.TrackAudio
	}
	return call.TrackVideo
}

func (t *remoteTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *remoteTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *remoteTrack) Stop() { t.SetEnabled(false) }
