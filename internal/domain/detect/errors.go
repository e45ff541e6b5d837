package detect

import "errors"

// Sentinel errors for detector attachment.
var (
	ErrNoCamera         = errors.New("camera unavailable")
	ErrModelUnavailable = errors.New("face model unavailable")
	ErrNilSource        = errors.New("event source is nil")
)
