package replay

import (
	"context"
	"sync"

	"github.com/okian/vigil/internal/domain/detect"
)

const (
	frameWidth  = 640
	frameHeight = 480
)

// scene is a camera and face model in one: every captured frame shows the
// faces set by the most recent step.
type scene struct {
	mu    sync.Mutex
	faces []detect.Face
}

func (s *scene) set(faces []detect.Face) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faces = faces
}

// Capture implements detect.Camera.
func (s *scene) Capture(context.Context) (detect.Frame, error) {
	return detect.Frame{Width: frameWidth, Height: frameHeight}, nil
}

// Detect implements detect.FaceModel.
func (s *scene) Detect(context.Context, detect.Frame) ([]detect.Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]detect.Face, len(s.faces))
	copy(out, s.faces)
	return out, nil
}

func (s *scene) load(context.Context) (detect.FaceModel, error) { return s, nil }
