package rtc

import (
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/okian/vigil/internal/domain/call"
)

// remoteStreams groups received tracks by remote stream id. A stream is
// handed out once, when every track the remote announced for it arrived.
type remoteStreams struct {
	mu       sync.Mutex
	pending  map[string]*call.Stream
	released map[string]bool
}

func newRemoteStreams() *remoteStreams {
	return &remoteStreams{
		pending:  make(map[string]*call.Stream),
		released: make(map[string]bool),
	}
}

// add records t under streamID. It returns the stream when it now holds
// want tracks. Tracks for a stream already released are ignored.
func (r *remoteStreams) add(streamID string, t call.Track, want int) (*call.Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released[streamID] {
		return nil, false
	}
	s, ok := r.pending[streamID]
	if !ok {
		s = &call.Stream{ID: streamID}
		r.pending[streamID] = s
	}
	s.Tracks = append(s.Tracks, t)
	if len(s.Tracks) < want {
		return nil, false
	}
	delete(r.pending, streamID)
	r.released[streamID] = true
	return s, true
}

// announcedTracks counts the media sections of desc the remote sends on
// for streamID. It is at least 1 so a stream without msid lines is still
// released on its first track.
func announcedTracks(desc *webrtc.SessionDescription, streamID string) int {
	if desc == nil {
		return 1
	}
	parsed, err := desc.Unmarshal()
	if err != nil {
		return 1
	}
	n := 0
	for _, m := range parsed.MediaDescriptions {
		if _, ok := m.Attribute("recvonly"); ok {
			continue
		}
		if _, ok := m.Attribute("inactive"); ok {
			continue
		}
		msid, ok := m.Attribute("msid")
		if !ok {
			continue
		}
		if id, _, _ := strings.Cut(msid, " "); id == streamID {
			n++
		}
	}
	return max(n, 1)
}
