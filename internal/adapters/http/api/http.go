// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/vigil/internal/app"

	"github.com/okian/vigil/internal/adapters/cache"
	"github.com/okian/vigil/internal/domain/model"
)

// Service is the proctoring surface the handlers call.
type Service interface {
	CreateMeeting(ctx context.Context, recruiterName string) (service.CreatedMeeting, error)
	Dashboard(ctx context.Context, meetingID string) (service.Dashboard, error)
	JoinMeeting(ctx context.Context, meetingID, candidateName string) (service.JoinedMeeting, error)
	EndMeeting(ctx context.Context, meetingID string) (service.Dashboard, error)
	SessionScore(ctx context.Context, sessionID string) (cache.ScoreSnapshot, error)
	SessionAlerts(ctx context.Context, sessionID string) ([]model.CheatAlert, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	meetingsHandler *MeetingsHandler
	sessionsHandler *SessionsHandler
	ws              http.Handler
}

// NewServer creates a new API server with all handlers. ws serves the
// session transport and may be nil.
func NewServer(svc Service, statsProvider StatsProvider, ws http.Handler) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		meetingsHandler: NewMeetingsHandler(svc),
		sessionsHandler: NewSessionsHandler(svc),
		ws:              ws,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /api/meetings", MetricsMiddleware(s.meetingsHandler.HandleCreate, "create_meeting"))
	mux.HandleFunc("GET /api/meetings/{id}", MetricsMiddleware(s.meetingsHandler.HandleGet, "get_meeting"))
	mux.HandleFunc("POST /api/meetings/{id}/join", MetricsMiddleware(s.meetingsHandler.HandleJoin, "join_meeting"))
	mux.HandleFunc("POST /api/meetings/{id}/end", MetricsMiddleware(s.meetingsHandler.HandleEnd, "end_meeting"))

	mux.HandleFunc("GET /api/sessions/{id}/score", MetricsMiddleware(s.sessionsHandler.HandleScore, "session_score"))
	mux.HandleFunc("GET /api/sessions/{id}/alerts", MetricsMiddleware(s.sessionsHandler.HandleAlerts, "session_alerts"))

	if s.ws != nil {
		mux.Handle("GET /ws", s.ws)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a service error to its status code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
