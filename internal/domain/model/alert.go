package model

import "time"

// CheatAlert is a human-readable projection of a qualifying EventRecord.
// Alerts are never stored; they are rebuilt from the event log.
type CheatAlert struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	EventType    EventType `json:"event_type"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	CodeSnapshot string    `json:"code_snapshot,omitempty"`
}

// ScoreUpdate is pushed to observers after every accepted event.
type ScoreUpdate struct {
	AuthenticityScore int `json:"authenticity_score"`
	SuspicionDelta    int `json:"suspicion_delta"`
	TotalEvents       int `json:"total_events"`
}
