package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/vigil/internal/domain/detect"
)

// Event targets. Page events reach the visibility, fullscreen and
// devtools detectors; answer and editor events reach the field detectors.
const (
	TargetPage   = "page"
	TargetAnswer = "answer"
	TargetEditor = "editor"
)

// Detector names accepted in a trace.
var detectorNames = []string{"visibility", "fullscreen", "devtools", "answer_box", "code_editor", "face_gaze"}

var eventKinds = []detect.EventKind{
	detect.KindVisibilityChange,
	detect.KindBlur,
	detect.KindFocus,
	detect.KindFullscreenChange,
	detect.KindPaste,
	detect.KindKeyUp,
	detect.KindKeyDown,
	detect.KindInput,
	detect.KindContextMenu,
}

// Trace is a recorded interview: who takes part, which detectors run and
// the host events they observe, in order.
type Trace struct {
	Name          string            `yaml:"name"`
	RecruiterName string            `yaml:"recruiter_name"`
	CandidateName string            `yaml:"candidate_name"`
	Window        detect.WindowSize `yaml:"window"`

	// Faces is what the camera sees before the first step changes it.
	Faces []detect.Face `yaml:"faces"`

	// Detectors limits the attached detectors. Empty attaches all of them.
	Detectors []string `yaml:"detectors"`

	Steps []Step `yaml:"steps"`

	// EndMeeting ends the meeting after the last step so the final score
	// is frozen.
	EndMeeting bool   `yaml:"end_meeting"`
	Expect     Expect `yaml:"expect"`
}

// Step waits After and then applies whatever it sets. Faces replaces
// what the camera sees; an empty list is a frame without faces.
type Step struct {
	After  time.Duration      `yaml:"after"`
	Target string             `yaml:"target,omitempty"`
	Event  *detect.Event      `yaml:"event,omitempty"`
	Window *detect.WindowSize `yaml:"window,omitempty"`
	Faces  []detect.Face      `yaml:"faces,omitempty"`
}

// Expect holds optional assertions on the replay outcome.
type Expect struct {
	MinScore *int `yaml:"min_score"`
	MaxScore *int `yaml:"max_score"`
	Alerts   *int `yaml:"alerts"`
	Events   *int `yaml:"events"`
}

// Load reads a trace file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a trace.
func Parse(r io.Reader) (*Trace, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t Trace
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTrace, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate reports every problem in the trace.
func (t *Trace) Validate() error {
	var errs []error
	if t.RecruiterName == "" {
		errs = append(errs, errors.New("recruiter_name is required"))
	}
	if t.CandidateName == "" {
		errs = append(errs, errors.New("candidate_name is required"))
	}
	for _, d := range t.Detectors {
		if !slices.Contains(detectorNames, d) {
			errs = append(errs, fmt.Errorf("unknown detector %q", d))
		}
	}
	if len(t.Steps) == 0 {
		errs = append(errs, errors.New("no steps"))
	}
	for i, s := range t.Steps {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i, err))
		}
	}
	if e := t.Expect; e.MinScore != nil && e.MaxScore != nil && *e.MinScore > *e.MaxScore {
		errs = append(errs, errors.New("expect.min_score is above expect.max_score"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTrace, errors.Join(errs...))
	}
	return nil
}

func (s Step) validate() error {
	if s.After < 0 {
		return errors.New("negative after")
	}
	if s.Event == nil && s.Window == nil && s.Faces == nil {
		return errors.New("step sets nothing")
	}
	switch s.Target {
	case "", TargetPage, TargetAnswer, TargetEditor:
	default:
		return fmt.Errorf("unknown target %q", s.Target)
	}
	if s.Event != nil && !slices.Contains(eventKinds, s.Event.Kind) {
		return fmt.Errorf("unknown event kind %q", s.Event.Kind)
	}
	return nil
}

// enabled reports whether detector name should be attached.
func (t *Trace) enabled(name string) bool {
	return len(t.Detectors) == 0 || slices.Contains(t.Detectors, name)
}

// usesCamera reports whether the trace scripts the camera. The face
// detector is only attached when it does.
func (t *Trace) usesCamera() bool {
	if t.Faces != nil {
		return true
	}
	for _, s := range t.Steps {
		if s.Faces != nil {
			return true
		}
	}
	return false
}
