// Package transport fans out wire frames to members of named rooms.
package transport

import "strings"

// RoomKind separates observer rooms from candidate rooms. A member is in
// at most one room of each kind.
type RoomKind string

// Room kinds.
const (
	KindObserver  RoomKind = "observer"
	KindCandidate RoomKind = "candidate"
)

// Room names a fan-out group, e.g. "observer:<meeting_id>".
type Room string

// ObserverRoom returns the observer room for a meeting.
func ObserverRoom(meetingID string) Room {
	return Room(string(KindObserver) + ":" + meetingID)
}

// CandidateRoom returns the candidate room for a session.
func CandidateRoom(sessionID string) Room {
	return Room(string(KindCandidate) + ":" + sessionID)
}

// Kind returns the room kind prefix.
func (r Room) Kind() RoomKind {
	kind, _, _ := strings.Cut(string(r), ":")
	return RoomKind(kind)
}

// ID returns the meeting or session id of the room.
func (r Room) ID() string {
	_, id, _ := strings.Cut(string(r), ":")
	return id
}
