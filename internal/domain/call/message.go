package call

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MessageKind is a signaling message kind understood by the endpoint.
// Values match the transport wire kinds.
type MessageKind string

// Signaling kinds.
const (
	KindCallReady     MessageKind = "call_ready"
	KindPeerCallReady MessageKind = "peer_call_ready"
	KindOffer         MessageKind = "webrtc_offer"
	KindAnswer        MessageKind = "webrtc_answer"
	KindICE           MessageKind = "webrtc_ice_candidate"
	KindScreenOffer   MessageKind = "screen_share_offer"
	KindScreenAnswer  MessageKind = "screen_share_answer"
	KindScreenICE     MessageKind = "screen_share_ice"
	KindScreenStopped MessageKind = "screen_share_stopped"
	KindSessionEnded  MessageKind = "session_ended"
)

// Message is a signaling message sent or received by an endpoint.
type Message struct {
	Kind      MessageKind
	MeetingID string
	SessionID string
	Target    Role
	SDP       *webrtc.SessionDescription
	Candidate *webrtc.ICECandidateInit
}

// Signaler sends messages to the relay.
type Signaler interface {
	Send(ctx context.Context, msg Message) error
}

func iceKind(ch Channel) MessageKind {
	if ch == ChannelScreen {
		return KindScreenICE
	}
	return KindICE
}
