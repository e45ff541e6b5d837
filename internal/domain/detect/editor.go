package detect

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/okian/vigil/internal/domain/alerts"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/clock"
)

// Code editor thresholds, in characters unless noted.
const (
	codePasteMin      = 80
	codePasteCritical = 500

	aiBurstChars    = 200
	rapidWindow     = 30 * time.Second
	rapidMinChars   = 150
	rapidPriorBelow = 20
)

// CodeEditor watches the coding challenge editor.
type CodeEditor struct {
	field EventSource
	clock clock.Clock

	mu    sync.Mutex
	first time.Time
	last  int
}

// NewCodeEditor returns a code editor detector for field.
func NewCodeEditor(field EventSource, opts ...Option) *CodeEditor {
	o := newOptions(0, opts)
	return &CodeEditor{field: field, clock: o.clock}
}

// Name implements Detector.
func (c *CodeEditor) Name() string { return "code_editor" }

// IsCheatShortcut reports whether the key combination opens devtools or
// the page source.
func IsCheatShortcut(key string, ctrl, shift bool) bool {
	if key == "F12" {
		return true
	}
	if ctrl && strings.EqualFold(key, "u") {
		return true
	}
	if ctrl && shift {
		switch strings.ToUpper(key) {
		case "I", "J", "C":
			return true
		}
	}
	return false
}

// Attach implements Detector.
func (c *CodeEditor) Attach(sink Sink) (Detach, error) {
	if c.field == nil {
		return nil, ErrNilSource
	}
	emit := emitter(c.clock, sink)

	var ls listeners
	ls.add(c.field.Listen(KindContextMenu, func(e *Event) {
		e.PreventDefault()
		emit(model.EventRightClickAttempt, model.SeverityLow, nil)
	}))
	ls.add(c.field.Listen(KindPaste, func(e *Event) {
		n := utf8.RuneCountInString(e.Clipboard)
		if n <= codePasteMin {
			return
		}
		sev := model.SeverityHigh
		if n > codePasteCritical {
			sev = model.SeverityCritical
		}
		emit(model.EventCodePaste, sev, map[string]any{
			"chars_pasted":  n,
			"code_snapshot": alerts.Truncate(e.Clipboard),
		})
	}))
	ls.add(c.field.Listen(KindKeyDown, func(e *Event) {
		if !IsCheatShortcut(e.Key, e.Ctrl, e.Shift) {
			return
		}
		e.PreventDefault()
		emit(model.EventKeyboardShortcutCheat, model.SeverityHigh, map[string]any{
			"key":   e.Key,
			"ctrl":  e.Ctrl,
			"shift": e.Shift,
		})
	}))
	ls.add(c.field.Listen(KindInput, func(e *Event) {
		c.input(e.Value, emit)
	}))
	return once(ls.removeAll), nil
}

func (c *CodeEditor) input(code string, emit func(model.EventType, model.Severity, map[string]any)) {
	now := c.clock.Now()
	n := utf8.RuneCountInString(code)

	c.mu.Lock()
	if c.first.IsZero() && n > 0 {
		c.first = now
	}
	started := !c.first.IsZero()
	elapsed := now.Sub(c.first)
	prev := c.last
	c.last = n
	c.mu.Unlock()

	added := n - prev
	if added > aiBurstChars {
		emit(model.EventAIPatternDetected, model.SeverityCritical, map[string]any{
			"chars_added":   added,
			"code_snapshot": alerts.Truncate(code),
		})
	}
	if started && elapsed < rapidWindow && n > rapidMinChars && prev < rapidPriorBelow {
		emit(model.EventRapidSolution, model.SeverityHigh, map[string]any{
			"elapsed_ms":    elapsed.Milliseconds(),
			"char_count":    n,
			"code_snapshot": alerts.Truncate(code),
		})
	}
}
