// Package wire defines the closed set of messages exchanged over the
// session transport and their JSON encoding.
package wire

// Kind tags an Envelope.
type Kind string

// Client to server kinds.
const (
	KindObserverSubscribe Kind = "observer_subscribe"
	KindCandidateJoined   Kind = "candidate_joined"
	KindBehaviorEvent     Kind = "behavior_event"
	KindAnswerSubmitted   Kind = "answer_submitted"
	KindPushQuestion      Kind = "push_question"
	KindSessionEnd        Kind = "session_end"
	KindCallReady         Kind = "call_ready"
)

// Server to client kinds.
const (
	KindLiveEventUpdate Kind = "live_event_update"
	KindScoreUpdate     Kind = "score_update"
	KindCheatAlert      Kind = "cheat_alert"
	KindQuestionPushed  Kind = "question_pushed"
	KindCandidateStatus Kind = "candidate_status"
	KindPeerCallReady   Kind = "peer_call_ready"
	KindSessionEnded    Kind = "session_ended"
	KindWarning         Kind = "warning"
	KindError           Kind = "error"
)

// Kinds relayed in both directions.
const (
	KindCodeUpdate    Kind = "code_update"
	KindOffer         Kind = "webrtc_offer"
	KindAnswer        Kind = "webrtc_answer"
	KindICE           Kind = "webrtc_ice_candidate"
	KindScreenOffer   Kind = "screen_share_offer"
	KindScreenAnswer  Kind = "screen_share_answer"
	KindScreenICE     Kind = "screen_share_ice"
	KindScreenStopped Kind = "screen_share_stopped"
)

type direction uint8

const (
	fromClient direction = 1 << iota
	fromServer
)

// Known reports whether k belongs to the closed set.
func (k Kind) Known() bool {
	_, ok := registry[k]
	return ok
}

// FromClient reports whether a client may send k.
func (k Kind) FromClient() bool {
	s, ok := registry[k]
	return ok && s.dir&fromClient != 0
}

// FromServer reports whether the server may send k.
func (k Kind) FromServer() bool {
	s, ok := registry[k]
	return ok && s.dir&fromServer != 0
}

// Signaling reports whether k carries a call.Message.
func (k Kind) Signaling() bool {
	switch k {
	case KindCallReady, KindPeerCallReady, KindOffer, KindAnswer, KindICE,
		KindScreenOffer, KindScreenAnswer, KindScreenICE, KindScreenStopped:
		return true
	}
	return false
}
