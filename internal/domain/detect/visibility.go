package detect

import (
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/clock"
)

// Visibility emits tab_switch when the page is hidden and window_blur /
// window_focus on focus transitions. Every transition is a signal.
type Visibility struct {
	page  EventSource
	clock clock.Clock
}

// NewVisibility returns a visibility/focus detector for page.
func NewVisibility(page EventSource, opts ...Option) *Visibility {
	o := newOptions(0, opts)
	return &Visibility{page: page, clock: o.clock}
}

// Name implements Detector.
func (v *Visibility) Name() string { return "visibility" }

// Attach implements Detector.
func (v *Visibility) Attach(sink Sink) (Detach, error) {
	if v.page == nil {
		return nil, ErrNilSource
	}
	emit := emitter(v.clock, sink)

	var ls listeners
	ls.add(v.page.Listen(KindVisibilityChange, func(e *Event) {
		if e.Hidden {
			emit(model.EventTabSwitch, model.SeverityHigh, nil)
		}
	}))
	ls.add(v.page.Listen(KindBlur, func(*Event) {
		emit(model.EventWindowBlur, model.SeverityMedium, nil)
	}))
	ls.add(v.page.Listen(KindFocus, func(*Event) {
		emit(model.EventWindowFocus, model.SeverityLow, nil)
	}))
	return once(ls.removeAll), nil
}

// emitter stamps signals with the clock time before handing them to sink.
func emitter(c clock.Clock, sink Sink) func(model.EventType, model.Severity, map[string]any) {
	return func(t model.EventType, sev model.Severity, meta map[string]any) {
		sink(model.Signal{
			EventType: t,
			Timestamp: c.Now(),
			Severity:  sev,
			Metadata:  meta,
		})
	}
}
