package wire

import "errors"

// Sentinel errors returned by Decode and Encode.
var (
	ErrUnknownKind    = errors.New("unknown message kind")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrDirection      = errors.New("message kind not accepted from this side")
)
