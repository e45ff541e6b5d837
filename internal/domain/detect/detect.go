// Package detect implements the behavioral signal detectors.
//
// Detectors observe a host page through the EventSource and Page
// abstractions and emit model.Signal values into a Sink. Every detector is
// attached independently and returns a Detach that reverses all listeners
// and timers it installed. Detach is idempotent.
package detect

import (
	"sync"

	"github.com/okian/vigil/internal/domain/model"
)

// EventKind names a host page event.
type EventKind string

// Host page events consumed by detectors.
const (
	KindVisibilityChange EventKind = "visibilitychange"
	KindBlur             EventKind = "blur"
	KindFocus            EventKind = "focus"
	KindFullscreenChange EventKind = "fullscreenchange"
	KindPaste            EventKind = "paste"
	KindKeyUp            EventKind = "keyup"
	KindKeyDown          EventKind = "keydown"
	KindInput            EventKind = "input"
	KindContextMenu      EventKind = "contextmenu"
)

// Event is a single host page event. Fields not relevant to Kind are zero.
type Event struct {
	Kind       EventKind `yaml:"kind" json:"kind"`
	Hidden     bool      `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Fullscreen bool      `yaml:"fullscreen,omitempty" json:"fullscreen,omitempty"`
	Clipboard  string    `yaml:"clipboard,omitempty" json:"clipboard,omitempty"`
	Value      string    `yaml:"value,omitempty" json:"value,omitempty"`
	Key        string    `yaml:"key,omitempty" json:"key,omitempty"`
	Ctrl       bool      `yaml:"ctrl,omitempty" json:"ctrl,omitempty"`
	Shift      bool      `yaml:"shift,omitempty" json:"shift,omitempty"`

	prevented bool
}

// PreventDefault cancels the host's default action for the event.
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.prevented }

// EventSource delivers host events to listeners. The returned func removes
// the listener.
type EventSource interface {
	Listen(kind EventKind, fn func(*Event)) (remove func())
}

// WindowSize holds the outer and inner window dimensions in pixels.
type WindowSize struct {
	OuterWidth  int `yaml:"outer_width" json:"outer_width"`
	OuterHeight int `yaml:"outer_height" json:"outer_height"`
	InnerWidth  int `yaml:"inner_width" json:"inner_width"`
	InnerHeight int `yaml:"inner_height" json:"inner_height"`
}

// Page is the top-level document.
type Page interface {
	EventSource
	WindowSize() WindowSize
	RequestFullscreen() error
}

// Sink receives emitted signals.
type Sink func(model.Signal)

// Detach reverses a detector attachment.
type Detach func()

// Detector is an independently attachable heuristic.
type Detector interface {
	Name() string
	Attach(sink Sink) (Detach, error)
}

// once wraps fn so repeated calls run it a single time.
func once(fn func()) Detach {
	var o sync.Once
	return func() { o.Do(fn) }
}

// listeners collects removal funcs so a detector can drop them together.
type listeners []func()

func (l *listeners) add(remove func()) { *l = append(*l, remove) }

func (l listeners) removeAll() {
	for i := len(l) - 1; i >= 0; i-- {
		l[i]()
	}
}
