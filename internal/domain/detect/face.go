package detect

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/clock"
	"github.com/okian/vigil/pkg/logger"
)

// Face/gaze thresholds.
const (
	noFaceSamples   = 2
	gazeAwaySamples = 3
	gazeAwayRatio   = 0.40
	noseTipIndex    = 3

	faceMissingCooldown  = 10 * time.Second
	multipleFaceCooldown = 12 * time.Second
	gazeAwayCooldown     = 15 * time.Second
)

// Point is a landmark position in frame pixels.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Face is one detected face with the landmarks used for gaze estimation.
type Face struct {
	Nose     []Point `yaml:"nose" json:"nose"`
	LeftEye  []Point `yaml:"left_eye" json:"left_eye"`
	RightEye []Point `yaml:"right_eye" json:"right_eye"`
}

// Frame is a captured video frame.
type Frame struct {
	Width  int
	Height int
	Data   []byte
}

// Camera captures frames from the local video.
type Camera interface {
	Capture(ctx context.Context) (Frame, error)
}

// FaceModel runs face detection and landmark estimation on a frame.
type FaceModel interface {
	Detect(ctx context.Context, f Frame) ([]Face, error)
}

// LoadFunc loads a FaceModel.
type LoadFunc func(ctx context.Context) (FaceModel, error)

// ModelLoader is a lazily initialized face model shared by every face
// detector in the process. A successful load is kept; a failed load is
// retried on the next call.
type ModelLoader struct {
	load LoadFunc

	mu    sync.Mutex
	model FaceModel
}

// NewModelLoader returns a loader that runs load on first use.
func NewModelLoader(load LoadFunc) *ModelLoader {
	return &ModelLoader{load: load}
}

// Model returns the loaded model, loading it if needed.
func (l *ModelLoader) Model(ctx context.Context) (FaceModel, error) {
	if l == nil || l.load == nil {
		return nil, ErrModelUnavailable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model != nil {
		return l.model, nil
	}
	m, err := l.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if m == nil {
		return nil, ErrModelUnavailable
	}
	l.model = m
	return m, nil
}

// Loaded reports whether the model is ready.
func (l *ModelLoader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.model != nil
}

// FaceGaze samples the camera and emits face_not_detected,
// multiple_faces_detected and gaze_away, each behind its own cooldown.
type FaceGaze struct {
	camera   Camera
	loader   *ModelLoader
	clock    clock.Clock
	logger   logger.Logger
	interval time.Duration
	timeout  time.Duration
	loadWait time.Duration

	mu       sync.Mutex
	noFace   int
	gazeAway int
	lastEmit map[model.EventType]time.Time
}

// NewFaceGaze returns a face/gaze detector reading camera with the model
// provided by loader.
func NewFaceGaze(camera Camera, loader *ModelLoader, opts ...Option) *FaceGaze {
	o := newOptions(DefaultFaceInterval, opts)
	return &FaceGaze{
		camera:   camera,
		loader:   loader,
		clock:    o.clock,
		logger:   o.logger.Named("face"),
		interval: o.interval,
		timeout:  o.timeout,
		loadWait: o.loadTimeout,
		lastEmit: make(map[model.EventType]time.Time),
	}
}

// Name implements Detector.
func (f *FaceGaze) Name() string { return "face_gaze" }

// Attach implements Detector. It loads the model and fails with
// ErrNoCamera or ErrModelUnavailable when detection cannot run.
func (f *FaceGaze) Attach(sink Sink) (Detach, error) {
	if f.camera == nil {
		return nil, ErrNoCamera
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.loadWait)
	defer cancel()
	m, err := f.loader.Model(ctx)
	if err != nil {
		return nil, err
	}

	emit := emitter(f.clock, sink)
	p := newPoller(f.clock, f.interval, func() { f.sample(m, emit) })
	p.start()
	return once(p.stop), nil
}

func (f *FaceGaze) sample(m FaceModel, emit func(model.EventType, model.Severity, map[string]any)) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	frame, err := f.camera.Capture(ctx)
	if err != nil {
		f.logger.Debug(ctx, "frame skipped", logger.Error(err))
		return
	}
	faces, err := m.Detect(ctx, frame)
	if err != nil {
		f.logger.Debug(ctx, "detection skipped", logger.Error(err))
		return
	}
	if t, sev, meta, ok := f.observe(faces); ok {
		emit(t, sev, meta)
	}
}

// observe updates the consecutive-sample counters and returns the signal
// to emit, if any.
func (f *FaceGaze) observe(faces []Face) (model.EventType, model.Severity, map[string]any, bool) {
	now := f.clock.Now()
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case len(faces) == 0:
		f.noFace++
		if f.noFace >= noFaceSamples && f.canEmitLocked(model.EventFaceNotDetected, faceMissingCooldown, now) {
			return model.EventFaceNotDetected, model.SeverityHigh, map[string]any{"consecutive": f.noFace}, true
		}
	case len(faces) >= 2:
		f.noFace = 0
		if f.canEmitLocked(model.EventMultipleFacesDetected, multipleFaceCooldown, now) {
			return model.EventMultipleFacesDetected, model.SeverityCritical, map[string]any{"face_count": len(faces)}, true
		}
	default:
		f.noFace = 0
		ratio, ok := GazeOffset(faces[0])
		if !ok || ratio <= gazeAwayRatio {
			f.gazeAway = 0
			return "", "", nil, false
		}
		f.gazeAway++
		if f.gazeAway >= gazeAwaySamples && f.canEmitLocked(model.EventGazeAway, gazeAwayCooldown, now) {
			return model.EventGazeAway, model.SeverityMedium, map[string]any{"offset_ratio": ratio}, true
		}
	}
	return "", "", nil, false
}

func (f *FaceGaze) canEmitLocked(t model.EventType, cooldown time.Duration, now time.Time) bool {
	last, ok := f.lastEmit[t]
	if ok && now.Sub(last) <= cooldown {
		return false
	}
	f.lastEmit[t] = now
	return true
}

// GazeOffset returns the horizontal distance between the nose tip and the
// midpoint of the eye centers, divided by the distance between the eye
// centers. The second result is false when the landmarks are incomplete
// or the eyes are less than a pixel apart.
func GazeOffset(face Face) (float64, bool) {
	if len(face.Nose) <= noseTipIndex || len(face.LeftEye) == 0 || len(face.RightEye) == 0 {
		return 0, false
	}
	left := center(face.LeftEye)
	right := center(face.RightEye)
	width := math.Abs(right.X - left.X)
	if width < 1 {
		return 0, false
	}
	mid := (left.X + right.X) / 2
	return math.Abs(face.Nose[noseTipIndex].X-mid) / width, true
}

func center(pts []Point) Point {
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point{X: c.X / n, Y: c.Y / n}
}
