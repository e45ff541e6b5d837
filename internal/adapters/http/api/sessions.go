package api

import (
	"net/http"

	"github.com/okian/vigil/internal/domain/scoring"
)

type scoreResponse struct {
	AuthenticityScore int          `json:"authenticity_score"`
	Tier              scoring.Tier `json:"tier"`
	TotalEvents       int          `json:"total_events"`
	Ended             bool         `json:"ended"`
}

// SessionsHandler handles per-session reads.
type SessionsHandler struct {
	svc Service
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(svc Service) *SessionsHandler {
	return &SessionsHandler{svc: svc}
}

// HandleScore handles GET /api/sessions/{id}/score.
func (h *SessionsHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.SessionScore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{
		AuthenticityScore: snap.AuthenticityScore,
		Tier:              snap.Tier,
		TotalEvents:       snap.TotalEvents,
		Ended:             snap.Ended,
	})
}

// HandleAlerts handles GET /api/sessions/{id}/alerts.
func (h *SessionsHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.SessionAlerts(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
