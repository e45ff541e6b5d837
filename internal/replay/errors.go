package replay

import "errors"

var (
	// ErrInvalidTrace is returned for traces that fail to decode or validate.
	ErrInvalidTrace = errors.New("invalid trace")
	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrUnexpectedStatus is returned for API responses with an unexpected status.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrExpectation is returned when a replay outcome misses the trace's expectations.
	ErrExpectation = errors.New("expectation not met")
)
