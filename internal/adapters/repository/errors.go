package repository

import "errors"

// Sentinel errors returned by stores.
var (
	ErrNotFound          = errors.New("not found")
	ErrSessionActive     = errors.New("meeting already has an active session")
	ErrSessionEnded      = errors.New("session ended")
	ErrMeetingEnded      = errors.New("meeting ended")
	ErrInvalidTransition = errors.New("invalid meeting status transition")
	ErrUnsupportedDriver = errors.New("unsupported store driver")
)
