package ws

import "errors"

// Sentinel errors.
var (
	ErrMissingToken = errors.New("missing token")
	ErrClosed       = errors.New("connection closed")
)
