package call

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// PeerState is the connection state reported by a Peer.
type PeerState string

// Peer connection states the endpoint reacts to.
const (
	PeerConnected    PeerState = "connected"
	PeerDisconnected PeerState = "disconnected"
	PeerFailed       PeerState = "failed"
	PeerClosed       PeerState = "closed"
)

// PeerConfig carries the local media and callbacks for a new Peer.
// Callbacks may run on any goroutine.
type PeerConfig struct {
	Channel        Channel
	Local          *Stream
	OnICECandidate func(webrtc.ICECandidateInit)
	OnRemoteStream func(*Stream)
	OnStateChange  func(PeerState)
}

// Peer is one side of a peer connection handshake.
type Peer interface {
	CreateOffer(ctx context.Context) (webrtc.SessionDescription, error)
	CreateAnswer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	SetAnswer(ctx context.Context, answer webrtc.SessionDescription) error
	AddICECandidate(c webrtc.ICECandidateInit) error
	Close() error
}

// PeerFactory creates peers. It is a process-wide capability injected at
// startup.
type PeerFactory interface {
	NewPeer(ctx context.Context, cfg PeerConfig) (Peer, error)
}
