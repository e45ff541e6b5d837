// Package replay drives a running service with a recorded interview
// trace: it opens a meeting, connects as observer and candidate, feeds the
// trace through the detectors and reports the resulting score.
package replay

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/okian/vigil/internal/adapters/wire"
	"github.com/okian/vigil/internal/adapters/ws"
	"github.com/okian/vigil/internal/domain/detect"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
)

// Defaults.
const (
	DefaultTimeout = 10 * time.Second
	DefaultSettle  = 5 * time.Second
	pollInterval   = 50 * time.Millisecond
)

// Config holds the replay settings.
type Config struct {
	BaseURL string        // Base URL of the service
	Timeout time.Duration // HTTP request timeout
	Settle  time.Duration // How long to wait for the history to catch up

	// Sampling intervals of the polling detectors. Zero keeps the
	// detector default.
	FaceInterval     time.Duration
	DevtoolsInterval time.Duration

	Logger logger.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.Settle <= 0 {
		out.Settle = DefaultSettle
	}
	if out.Logger == nil {
		out.Logger = logger.Get()
	}
	out.Logger = out.Logger.Named("replay")
	return out
}

// submitter sends recorder signals as behavior_event frames.
type submitter struct {
	conn *ws.Client
}

func (s submitter) SubmitSignal(ctx context.Context, sessionID, nonce string, sig model.Signal) error {
	return s.conn.Write(ctx, wire.KindBehaviorEvent, wire.BehaviorEvent{
		SessionID: sessionID,
		Nonce:     nonce,
		Event:     sig,
	})
}

// Run replays t against the service at cfg.BaseURL.
func Run(ctx context.Context, cfg *Config, t *Trace) (*Report, error) {
	c := cfg.withDefaults()
	log := c.Logger
	start := time.Now()

	api := NewClient(c.BaseURL, c.Timeout)
	if err := api.Health(ctx); err != nil {
		return nil, err
	}
	endpoint, err := websocketURL(c.BaseURL)
	if err != nil {
		return nil, err
	}

	created, err := api.CreateMeeting(ctx, t.RecruiterName)
	if err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	meetingID := created.Meeting.ID
	joined, err := api.JoinMeeting(ctx, meetingID, t.CandidateName)
	if err != nil {
		return nil, fmt.Errorf("join meeting: %w", err)
	}
	sessionID := joined.Session.ID
	log.Info(ctx, "replaying trace",
		logger.String("trace", t.Name),
		logger.MeetingID(meetingID),
		logger.SessionID(sessionID),
		logger.Int("steps", len(t.Steps)))

	observer, err := ws.Dial(ctx, endpoint, created.ObserverToken)
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	defer observer.Close()
	candidate, err := ws.Dial(ctx, endpoint, joined.CandidateToken)
	if err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}
	defer candidate.Close()

	observed, received := newFrameCounter(), newFrameCounter()
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	go func() { _ = observer.Run(readCtx, observed.observe) }()
	go func() { _ = candidate.Run(readCtx, received.observe) }()

	if err := observer.Write(ctx, wire.KindObserverSubscribe, wire.ObserverSubscribe{MeetingID: meetingID}); err != nil {
		return nil, err
	}
	if err := candidate.Write(ctx, wire.KindCandidateJoined, wire.CandidateJoined{
		MeetingID:     meetingID,
		SessionID:     sessionID,
		CandidateName: t.CandidateName,
	}); err != nil {
		return nil, err
	}

	rec := detect.NewRecorder(sessionID, submitter{conn: candidate}, detect.WithLogger(log), detect.WithTimeout(c.Timeout))
	page, answer, editor := detect.NewBus(), detect.NewBus(), detect.NewBus()
	page.SetWindowSize(t.Window)
	cam := &scene{faces: t.Faces}

	set := detect.NewSet(detect.WithLogger(log))
	detach := set.Attach(rec.Sink(), t.detectors(c, page, answer, editor, cam)...)
	statuses := set.Status()

	err = play(ctx, t.Steps, page, answer, editor, cam)
	detach()
	if err != nil {
		return nil, err
	}

	recorded := rec.Recorded()
	report := &Report{
		Trace:     t.Name,
		MeetingID: meetingID,
		SessionID: sessionID,
		Signals:   len(recorded),
		Failed:    rec.Failed(),
		Detectors: statuses,
	}

	if report.Score, err = settle(ctx, api, sessionID, report.Signals-report.Failed, c.Settle); err != nil {
		return nil, err
	}
	if report.Alerts, err = api.Alerts(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	if t.EndMeeting {
		if _, err := api.EndMeeting(ctx, meetingID); err != nil {
			return nil, fmt.Errorf("end meeting: %w", err)
		}
		if report.Score, err = api.Score(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("score: %w", err)
		}
	}

	report.ObserverFrames = observed.snapshot()
	report.CandidateFrames = received.snapshot()
	report.Duration = time.Since(start)
	return report, nil
}

// detectors builds the detectors the trace enables.
func (t *Trace) detectors(c Config, page, answer, editor *detect.Bus, cam *scene) []detect.Detector {
	opts := []detect.Option{detect.WithLogger(c.Logger)}
	var out []detect.Detector
	if t.enabled("visibility") {
		out = append(out, detect.NewVisibility(page, opts...))
	}
	if t.enabled("fullscreen") {
		out = append(out, detect.NewFullscreen(page, opts...))
	}
	if t.enabled("devtools") {
		out = append(out, detect.NewDevtools(page, append(opts, detect.WithInterval(c.DevtoolsInterval))...))
	}
	if t.enabled("answer_box") {
		out = append(out, detect.NewAnswerBox(answer, opts...))
	}
	if t.enabled("code_editor") {
		out = append(out, detect.NewCodeEditor(editor, opts...))
	}
	if t.enabled("face_gaze") && t.usesCamera() {
		loader := detect.NewModelLoader(cam.load)
		out = append(out, detect.NewFaceGaze(cam, loader, append(opts, detect.WithInterval(c.FaceInterval))...))
	}
	return out
}

// play applies each step after its delay.
func play(ctx context.Context, steps []Step, page, answer, editor *detect.Bus, cam *scene) error {
	for i, s := range steps {
		if s.After > 0 {
			timer := time.NewTimer(s.After)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("step %d: %w", i, ctx.Err())
			case <-timer.C:
			}
		}
		if s.Window != nil {
			page.SetWindowSize(*s.Window)
		}
		if s.Faces != nil {
			cam.set(s.Faces)
		}
		if s.Event == nil {
			continue
		}
		switch s.Target {
		case TargetAnswer:
			answer.Dispatch(*s.Event)
		case TargetEditor:
			editor.Dispatch(*s.Event)
		default:
			page.Dispatch(*s.Event)
		}
	}
	return nil
}

// settle polls the score until the history holds want events or the wait
// runs out, and returns the last score seen.
func settle(ctx context.Context, api *Client, sessionID string, want int, wait time.Duration) (Score, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		score, err := api.Score(ctx, sessionID)
		if err != nil {
			return Score{}, fmt.Errorf("score: %w", err)
		}
		if score.TotalEvents >= want || time.Now().After(deadline) {
			return score, nil
		}
		select {
		case <-ctx.Done():
			return score, ctx.Err()
		case <-ticker.C:
		}
	}
}

// websocketURL maps an http(s) base URL to the /ws endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
