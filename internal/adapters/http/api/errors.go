package api

import (
	"errors"
	"net/http"

	service "github.com/okian/vigil/internal/app"

	"github.com/okian/vigil/internal/adapters/repository"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// classify returns the HTTP status and error code for err.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrSessionActive):
		return http.StatusConflict, "session_active"
	case errors.Is(err, repository.ErrMeetingEnded):
		return http.StatusBadRequest, "meeting_ended"
	case errors.Is(err, repository.ErrSessionEnded):
		return http.StatusConflict, "session_ended"
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
