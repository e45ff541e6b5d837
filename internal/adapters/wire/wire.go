package wire

import (
	"encoding/json"
	"fmt"

	"github.com/okian/vigil/internal/domain/call"
	"github.com/okian/vigil/internal/domain/model"
)

// Envelope is the JSON frame on the wire.
type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is a decoded Envelope. Payload is a pointer to the type
// registered for Kind, e.g. *BehaviorEvent for KindBehaviorEvent.
type Message struct {
	Kind    Kind
	Payload any
}

type validator interface {
	validate(Kind) error
}

type entry struct {
	dir direction
	new func() any
}

var registry = map[Kind]entry{
	KindObserverSubscribe: {fromClient, func() any { return new(ObserverSubscribe) }},
	KindCandidateJoined:   {fromClient, func() any { return new(CandidateJoined) }},
	KindBehaviorEvent:     {fromClient, func() any { return new(BehaviorEvent) }},
	KindAnswerSubmitted:   {fromClient, func() any { return new(AnswerSubmitted) }},
	KindPushQuestion:      {fromClient, func() any { return new(PushQuestion) }},
	KindSessionEnd:        {fromClient, func() any { return new(SessionEnd) }},
	KindCallReady:         {fromClient, func() any { return new(Signal) }},

	KindLiveEventUpdate: {fromServer, func() any { return new(model.EventRecord) }},
	KindScoreUpdate:     {fromServer, func() any { return new(model.ScoreUpdate) }},
	KindCheatAlert:      {fromServer, func() any { return new(model.CheatAlert) }},
	KindQuestionPushed:  {fromServer, func() any { return new(model.Challenge) }},
	KindCandidateStatus: {fromServer, func() any { return new(CandidateStatus) }},
	KindPeerCallReady:   {fromServer, func() any { return new(Signal) }},
	KindSessionEnded:    {fromServer, func() any { return new(SessionEnded) }},
	KindWarning:         {fromServer, func() any { return new(Notice) }},
	KindError:           {fromServer, func() any { return new(Notice) }},

	KindCodeUpdate:    {fromClient | fromServer, func() any { return new(model.CodeUpdate) }},
	KindOffer:         {fromClient | fromServer, func() any { return new(Signal) }},
	KindAnswer:        {fromClient | fromServer, func() any { return new(Signal) }},
	KindICE:           {fromClient | fromServer, func() any { return new(Signal) }},
	KindScreenOffer:   {fromClient | fromServer, func() any { return new(Signal) }},
	KindScreenAnswer:  {fromClient | fromServer, func() any { return new(Signal) }},
	KindScreenICE:     {fromClient | fromServer, func() any { return new(Signal) }},
	KindScreenStopped: {fromClient | fromServer, func() any { return new(Signal) }},
}

// Decode parses and validates one frame.
func Decode(b []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err) //nolint:errorlint // keep sentinel as the wrapped error
	}
	s, ok := registry[env.Type]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	payload := s.new()
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return Message{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err) //nolint:errorlint // keep sentinel as the wrapped error
	}
	if v, ok := payload.(validator); ok {
		if err := v.validate(env.Type); err != nil {
			return Message{}, err
		}
	}
	return Message{Kind: env.Type, Payload: payload}, nil
}

// DecodeFromClient is Decode restricted to kinds a client may send.
func DecodeFromClient(b []byte) (Message, error) {
	m, err := Decode(b)
	if err != nil {
		return Message{}, err
	}
	if !m.Kind.FromClient() {
		return Message{}, fmt.Errorf("%w: %s", ErrDirection, m.Kind)
	}
	return m, nil
}

// Encode marshals payload as a frame of kind k.
func Encode(k Kind, payload any) ([]byte, error) {
	if !k.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", k, err)
	}
	return json.Marshal(Envelope{Type: k, Data: data})
}

// MustEncode is Encode for payloads built by the server itself.
func MustEncode(k Kind, payload any) []byte {
	b, err := Encode(k, payload)
	if err != nil {
		panic(err)
	}
	return b
}

// FromCall converts an endpoint signaling message to a frame payload.
func FromCall(m call.Message) (Kind, *Signal) {
	return Kind(m.Kind), &Signal{
		MeetingID: m.MeetingID,
		SessionID: m.SessionID,
		Target:    m.Target,
		SDP:       m.SDP,
		Candidate: m.Candidate,
	}
}

// ToCall converts a decoded signaling payload for an endpoint.
func ToCall(k Kind, s *Signal) call.Message {
	return call.Message{
		Kind:      call.MessageKind(k),
		MeetingID: s.MeetingID,
		SessionID: s.SessionID,
		Target:    s.Target,
		SDP:       s.SDP,
		Candidate: s.Candidate,
	}
}

// AsCall returns the endpoint message carried by m, if any.
func AsCall(m Message) (call.Message, bool) {
	switch p := m.Payload.(type) {
	case *Signal:
		if m.Kind.Signaling() {
			return ToCall(m.Kind, p), true
		}
	case *SessionEnded:
		return call.Message{Kind: call.KindSessionEnded, SessionID: p.SessionID}, true
	}
	return call.Message{}, false
}
