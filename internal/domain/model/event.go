// Package model contains domain models passed between layers.
package model

import "time"

// EventType names a behavior signal kind.
type EventType string

// Behavior event types emitted by detectors.
const (
	EventTabSwitch       EventType = "tab_switch"
	EventWindowBlur      EventType = "window_blur"
	EventWindowFocus     EventType = "window_focus"
	EventPasteAttempt    EventType = "paste_attempt"
	EventFullscreenExit  EventType = "fullscreen_exit"
	EventFullscreenEnter EventType = "fullscreen_enter"
	EventWordBurst       EventType = "word_burst"
	EventLongDelay       EventType = "long_delay"
	EventTypingFast      EventType = "typing_fast"
	EventSessionStart    EventType = "session_start"
	EventSessionEnd      EventType = "session_end"
	EventAnswerSubmitted EventType = "answer_submitted"

	// Code editor.
	EventCodePaste             EventType = "code_paste"
	EventDevtoolsOpen          EventType = "devtools_open"
	EventRightClickAttempt     EventType = "right_click_attempt"
	EventKeyboardShortcutCheat EventType = "keyboard_shortcut_cheat"
	EventAIPatternDetected     EventType = "ai_pattern_detected"
	EventRapidSolution         EventType = "rapid_solution"
	EventCodeSubmitted         EventType = "code_submitted"

	// Camera.
	EventFaceNotDetected       EventType = "face_not_detected"
	EventMultipleFacesDetected EventType = "multiple_faces_detected"
	EventGazeAway              EventType = "gaze_away"
)

// Severity is assigned by the detector when a signal is created.
type Severity string

// Severity levels, lowest first.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the four known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Elevated reports whether s is high or critical.
func (s Severity) Elevated() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Signal is a behavior observation produced by a detector. Duplicates are
// valid: two tab switches are two signals.
type Signal struct {
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Severity  Severity       `json:"severity"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventRecord is a Signal accepted into a session history.
//
// Seq is the per-session arrival sequence and defines history order. The
// client timestamp is informational only since clients are untrusted.
type EventRecord struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Seq        int64          `json:"seq"`
	EventType  EventType      `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	ReceivedAt time.Time      `json:"received_at"`
	Severity   Severity       `json:"severity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Signal returns the behavior signal the record was created from.
func (r EventRecord) Signal() Signal {
	return Signal{
		EventType: r.EventType,
		Timestamp: r.Timestamp,
		Severity:  r.Severity,
		Metadata:  r.Metadata,
	}
}

// Submission is a signal accepted at the boundary and waiting for its
// session's sequencer. Nonce is the client's retry key and may be empty.
type Submission struct {
	SessionID  string
	Nonce      string
	Signal     Signal
	ReceivedAt time.Time
}
