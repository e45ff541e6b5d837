package model

import "time"

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

// Meeting statuses. Transitions are waiting -> active -> ended only.
const (
	MeetingWaiting MeetingStatus = "waiting"
	MeetingActive  MeetingStatus = "active"
	MeetingEnded   MeetingStatus = "ended"
)

// CanTransition reports whether a meeting may move from s to next.
func (s MeetingStatus) CanTransition(next MeetingStatus) bool {
	switch s {
	case MeetingWaiting:
		return next == MeetingActive || next == MeetingEnded
	case MeetingActive:
		return next == MeetingEnded
	}
	return false
}

// Meeting is created by an observer and joined by one candidate at a time.
type Meeting struct {
	ID            string        `json:"id"`
	RecruiterName string        `json:"recruiter_name"`
	CreatedAt     time.Time     `json:"created_at"`
	Status        MeetingStatus `json:"status"`
}

// DefaultScore is the authenticity score of a session with no events.
const DefaultScore = 100

// Session is one candidate's participation in one meeting.
type Session struct {
	ID                string     `json:"id"`
	MeetingID         string     `json:"meeting_id"`
	CandidateName     string     `json:"candidate_name"`
	AuthenticityScore int        `json:"authenticity_score"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
}

// Ended reports whether the session was closed.
func (s Session) Ended() bool { return s.EndedAt != nil }
