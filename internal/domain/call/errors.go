package call

import (
	"errors"
	"fmt"
)

// Sentinel errors for call operations.
var (
	ErrInvalidTransition = errors.New("invalid call state transition")
	ErrMediaUnavailable  = errors.New("local media unavailable")
	ErrCallActive        = errors.New("call already active")
	ErrCallEnded         = errors.New("call ended")
	ErrNoLocalMedia      = errors.New("no local media")
	ErrUnexpected        = errors.New("unexpected signaling message")
	ErrInvalidConfig     = errors.New("invalid endpoint config")
)

// TransitionError describes a rejected state change.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
