package wire

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/okian/vigil/internal/domain/call"
	"github.com/okian/vigil/internal/domain/model"
)

// ObserverSubscribe joins the observer room of a meeting.
type ObserverSubscribe struct {
	MeetingID string `json:"meeting_id"`
}

// CandidateJoined joins the candidate room of a session.
type CandidateJoined struct {
	MeetingID     string `json:"meeting_id"`
	SessionID     string `json:"session_id"`
	CandidateName string `json:"candidate_name"`
}

// BehaviorEvent carries one detector signal. Nonce is a client-chosen
// retry key; resending with the same nonce is acknowledged without effect.
type BehaviorEvent struct {
	SessionID string       `json:"session_id"`
	Nonce     string       `json:"nonce,omitempty"`
	Event     model.Signal `json:"event"`
}

// AnswerSubmitted reports a written answer.
type AnswerSubmitted struct {
	SessionID     string `json:"session_id"`
	Answer        string `json:"answer"`
	QuestionIndex int    `json:"question_index"`
}

// PushQuestion sends a challenge from the observer to the candidate.
type PushQuestion struct {
	MeetingID string          `json:"meeting_id"`
	SessionID string          `json:"session_id"`
	Challenge model.Challenge `json:"challenge"`
}

// SessionEnd asks the server to end a session.
type SessionEnd struct {
	SessionID string `json:"session_id"`
}

// CandidateStatus tells observers the candidate's presence.
type CandidateStatus struct {
	Joined           bool   `json:"joined"`
	CandidateName    string `json:"candidate_name,omitempty"`
	MonitoringActive bool   `json:"monitoring_active"`
}

// SessionEnded is sent to both rooms when a session ends.
type SessionEnded struct {
	SessionID  string `json:"session_id,omitempty"`
	FinalScore int    `json:"final_score"`
}

// Notice is a one-way text message, used for warning and error.
type Notice struct {
	Message string `json:"message"`
}

// Signal is the payload of every signaling kind.
type Signal struct {
	MeetingID string                     `json:"meeting_id,omitempty"`
	SessionID string                     `json:"session_id,omitempty"`
	Target    call.Role                  `json:"target,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

func (p *ObserverSubscribe) validate(Kind) error {
	return required("meeting_id", p.MeetingID)
}

func (p *CandidateJoined) validate(Kind) error {
	if err := required("meeting_id", p.MeetingID); err != nil {
		return err
	}
	return required("session_id", p.SessionID)
}

func (p *BehaviorEvent) validate(Kind) error {
	if err := required("session_id", p.SessionID); err != nil {
		return err
	}
	if err := required("event.event_type", string(p.Event.EventType)); err != nil {
		return err
	}
	if !p.Event.Severity.Valid() {
		return fmt.Errorf("%w: severity %q", ErrInvalidPayload, p.Event.Severity)
	}
	return nil
}

func (p *AnswerSubmitted) validate(Kind) error {
	if err := required("session_id", p.SessionID); err != nil {
		return err
	}
	if p.QuestionIndex < 0 {
		return fmt.Errorf("%w: question_index %d", ErrInvalidPayload, p.QuestionIndex)
	}
	return nil
}

func (p *PushQuestion) validate(Kind) error {
	if err := required("session_id", p.SessionID); err != nil {
		return err
	}
	return required("challenge.title", p.Challenge.Title)
}

func (p *SessionEnd) validate(Kind) error {
	return required("session_id", p.SessionID)
}

func (p *Signal) validate(k Kind) error {
	switch k {
	case KindCallReady, KindPeerCallReady:
		return required("session_id", p.SessionID)
	case KindOffer, KindScreenOffer:
		return validSDP(p.SDP, webrtc.SDPTypeOffer)
	case KindAnswer, KindScreenAnswer:
		return validSDP(p.SDP, webrtc.SDPTypeAnswer)
	case KindICE, KindScreenICE:
		if p.Candidate == nil || p.Candidate.Candidate == "" {
			return fmt.Errorf("%w: missing candidate", ErrInvalidPayload)
		}
		if !p.Target.Valid() {
			return fmt.Errorf("%w: target %q", ErrInvalidPayload, p.Target)
		}
	}
	return nil
}

func validSDP(sd *webrtc.SessionDescription, want webrtc.SDPType) error {
	if sd == nil {
		return fmt.Errorf("%w: missing sdp", ErrInvalidPayload)
	}
	if sd.Type != want {
		return fmt.Errorf("%w: sdp type %s, want %s", ErrInvalidPayload, sd.Type, want)
	}
	if _, err := sd.Unmarshal(); err != nil {
		return fmt.Errorf("%w: sdp: %v", ErrInvalidPayload, err) //nolint:errorlint // keep sentinel as the wrapped error
	}
	return nil
}

func required(field, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidPayload, field)
	}
	return nil
}
