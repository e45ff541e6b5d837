package call

import "context"

// MediaKind selects what MediaSource.Acquire captures.
type MediaKind string

// Media kinds.
const (
	MediaCamera MediaKind = "camera"
	MediaScreen MediaKind = "screen"
)

// TrackKind is the kind of a media track.
type TrackKind string

// Track kinds.
const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Track is a single local or remote media track.
type Track interface {
	ID() string
	Kind() TrackKind
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
}

// Stream groups the tracks of one capture or one remote peer.
type Stream struct {
	ID     string
	Tracks []Track
}

// Release stops every track.
func (s *Stream) Release() {
	if s == nil {
		return
	}
	for _, t := range s.Tracks {
		t.Stop()
	}
}

// toggle flips every track of kind and returns the new enabled state.
func (s *Stream) toggle(kind TrackKind) (bool, bool) {
	found := false
	enabled := false
	for _, t := range s.Tracks {
		if t.Kind() != kind {
			continue
		}
		if !found {
			enabled = !t.Enabled()
			found = true
		}
		t.SetEnabled(enabled)
	}
	return enabled, found
}

// MediaSource acquires local media. Implementations must honor ctx so a
// denied permission fails fast instead of hanging.
type MediaSource interface {
	Acquire(ctx context.Context, kind MediaKind) (*Stream, error)
}
