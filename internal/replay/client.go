package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/vigil/internal/app"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/scoring"
)

// Score is the session score as served by the API.
type Score struct {
	AuthenticityScore int          `json:"authenticity_score"`
	Tier              scoring.Tier `json:"tier"`
	TotalEvents       int          `json:"total_events"`
	Ended             bool         `json:"ended"`
}

// Client calls the HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, http.StatusOK, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

// CreateMeeting creates a meeting for recruiter.
func (c *Client) CreateMeeting(ctx context.Context, recruiter string) (service.CreatedMeeting, error) {
	var out service.CreatedMeeting
	body := map[string]string{"recruiter_name": recruiter}
	err := c.do(ctx, http.MethodPost, "/api/meetings", body, http.StatusCreated, &out)
	return out, err
}

// JoinMeeting starts a session for candidate.
func (c *Client) JoinMeeting(ctx context.Context, meetingID, candidate string) (service.JoinedMeeting, error) {
	var out service.JoinedMeeting
	body := map[string]string{"candidate_name": candidate}
	err := c.do(ctx, http.MethodPost, "/api/meetings/"+meetingID+"/join", body, http.StatusCreated, &out)
	return out, err
}

// EndMeeting ends the meeting and returns its dashboard.
func (c *Client) EndMeeting(ctx context.Context, meetingID string) (service.Dashboard, error) {
	var out service.Dashboard
	err := c.do(ctx, http.MethodPost, "/api/meetings/"+meetingID+"/end", nil, http.StatusOK, &out)
	return out, err
}

// Score returns the session score.
func (c *Client) Score(ctx context.Context, sessionID string) (Score, error) {
	var out Score
	err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID+"/score", nil, http.StatusOK, &out)
	return out, err
}

// Alerts returns the session's cheat alerts.
func (c *Client) Alerts(ctx context.Context, sessionID string) ([]model.CheatAlert, error) {
	var out []model.CheatAlert
	err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID+"/alerts", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
