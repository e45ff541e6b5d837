package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type createMeetingRequest struct {
	RecruiterName string `json:"recruiter_name"`
}

type joinMeetingRequest struct {
	CandidateName string `json:"candidate_name"`
}

// MeetingsHandler handles meeting lifecycle requests.
type MeetingsHandler struct {
	svc Service
}

// NewMeetingsHandler creates a new meetings handler.
func NewMeetingsHandler(svc Service) *MeetingsHandler {
	return &MeetingsHandler{svc: svc}
}

// HandleCreate handles POST /api/meetings.
func (h *MeetingsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.RecruiterName) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing recruiter_name", ErrBadRequest))
		return
	}
	out, err := h.svc.CreateMeeting(r.Context(), req.RecruiterName)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// HandleGet handles GET /api/meetings/{id}.
func (h *MeetingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleJoin handles POST /api/meetings/{id}/join.
func (h *MeetingsHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.CandidateName) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing candidate_name", ErrBadRequest))
		return
	}
	out, err := h.svc.JoinMeeting(r.Context(), r.PathValue("id"), req.CandidateName)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// HandleEnd handles POST /api/meetings/{id}/end.
func (h *MeetingsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.EndMeeting(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
