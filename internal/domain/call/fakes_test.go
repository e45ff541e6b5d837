package call_test

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/okian/vigil/internal/domain/call"
)

var errDenied = errors.New("permission denied")

type fakeTrack struct {
	id      string
	kind    call.TrackKind
	enabled bool
	stopped bool
}

func (t *fakeTrack) ID() string              { return t.id }
func (t *fakeTrack) Kind() call.TrackKind    { return t.kind }
func (t *fakeTrack) Enabled() bool           { return t.enabled }
func (t *fakeTrack) SetEnabled(enabled bool) { t.enabled = enabled }
func (t *fakeTrack) Stop()                   { t.stopped = true }

// fakeMedia hands out streams and remembers every track it created.
type fakeMedia struct {
	mu     sync.Mutex
	err    error
	block  bool
	tracks []*fakeTrack
}

func (m *fakeMedia) Acquire(ctx context.Context, kind call.MediaKind) (*call.Stream, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &call.Stream{ID: string(kind)}
	kinds := []call.TrackKind{call.TrackAudio, call.TrackVideo}
	if kind == call.MediaScreen {
		kinds = []call.TrackKind{call.TrackVideo}
	}
	for _, k := range kinds {
		tr := &fakeTrack{id: string(kind) + "-" + string(k), kind: k, enabled: true}
		m.tracks = append(m.tracks, tr)
		s.Tracks = append(s.Tracks, tr)
	}
	return s, nil
}

func (m *fakeMedia) live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tracks {
		if !t.stopped {
			n++
		}
	}
	return n
}

type fakePeer struct {
	cfg        call.PeerConfig
	offerErr   error
	answer     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	closed     bool
}

func (p *fakePeer) CreateOffer(context.Context) (webrtc.SessionDescription, error) {
	if p.offerErr != nil {
		return webrtc.SessionDescription{}, p.offerErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-" + string(p.cfg.Channel)}, nil
}

func (p *fakePeer) CreateAnswer(_ context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-to-" + offer.SDP}, nil
}

func (p *fakePeer) SetAnswer(_ context.Context, answer webrtc.SessionDescription) error {
	p.answer = &answer
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) Close() error {
	p.closed = true
	return nil
}

type fakeFactory struct {
	mu       sync.Mutex
	peers    []*fakePeer
	offerErr error
}

func (f *fakeFactory) NewPeer(_ context.Context, cfg call.PeerConfig) (call.Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePeer{cfg: cfg, offerErr: f.offerErr}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakeFactory) last() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}

type outbox struct {
	mu   sync.Mutex
	sent []call.Message
}

func (o *outbox) Send(_ context.Context, msg call.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) kinds() []call.MessageKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]call.MessageKind, 0, len(o.sent))
	for _, m := range o.sent {
		out = append(out, m.Kind)
	}
	return out
}

func (o *outbox) last() call.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent[len(o.sent)-1]
}

type stateLog struct {
	mu      sync.Mutex
	entries []string
}

func (s *stateLog) record(ch call.Channel, st call.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, string(ch)+":"+string(st))
}

func (s *stateLog) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}
