package detect_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/okian/vigil/internal/domain/detect"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/clock"
)

var epoch = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

// collector is a Sink that keeps every signal.
type collector struct {
	mu      sync.Mutex
	signals []model.Signal
}

func (c *collector) sink(s model.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals = append(c.signals, s)
}

func (c *collector) all() []model.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Signal, len(c.signals))
	copy(out, c.signals)
	return out
}

func (c *collector) types() []model.EventType {
	var out []model.EventType
	for _, s := range c.all() {
		out = append(out, s.EventType)
	}
	return out
}

func (c *collector) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals = nil
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func newClock() *clock.FakeClock { return clock.Fake(epoch) }

type stillCamera struct{ err error }

func (c stillCamera) Capture(context.Context) (detect.Frame, error) {
	if c.err != nil {
		return detect.Frame{}, c.err
	}
	return detect.Frame{Width: 640, Height: 480}, nil
}

// scriptedModel returns one scripted detection per call and repeats the
// last one once the script runs out.
type scriptedModel struct {
	mu     sync.Mutex
	script [][]detect.Face
	calls  int
}

func (m *scriptedModel) Detect(context.Context, detect.Frame) ([]detect.Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	m.calls++
	return m.script[i], nil
}

func face(noseX float64) detect.Face {
	return detect.Face{
		Nose:     []detect.Point{{X: 5, Y: 2}, {X: 5, Y: 4}, {X: 5, Y: 6}, {X: noseX, Y: 8}},
		LeftEye:  []detect.Point{{X: -1, Y: 0}, {X: 1, Y: 0}},
		RightEye: []detect.Point{{X: 9, Y: 0}, {X: 11, Y: 0}},
	}
}

var errNoNetwork = errors.New("no network")
