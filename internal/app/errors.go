package service

import "errors"

// Sentinel errors returned by the service. Store errors such as
// repository.ErrNotFound are passed through wrapped.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidSignal = errors.New("invalid signal")
	ErrBackpressure  = errors.New("signal queue full")
	ErrForbidden     = errors.New("forbidden")
	ErrWrongRole     = errors.New("message not allowed for this role")
	ErrUnhandled     = errors.New("message kind not handled")
)
