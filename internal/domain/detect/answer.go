package detect

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/clock"
)

// Answer box thresholds.
const (
	pasteCriticalWords = 30
	pasteHighWords     = 10

	burstWords        = 40
	burstWindow       = 2 * time.Second
	fastTypingWPM     = 150
	longDelay         = 30 * time.Second
	longDelayMinWords = 5

	speedWindow = 10
)

// AnswerBox watches a free-text answer field for pastes and abnormal
// typing rhythm.
type AnswerBox struct {
	field EventSource
	clock clock.Clock

	mu       sync.Mutex
	last     string
	lastType time.Time
	speeds   []float64
}

// NewAnswerBox returns a paste/typing detector for field.
func NewAnswerBox(field EventSource, opts ...Option) *AnswerBox {
	o := newOptions(0, opts)
	return &AnswerBox{field: field, clock: o.clock}
}

// Name implements Detector.
func (a *AnswerBox) Name() string { return "answer_box" }

// PasteSeverity maps a pasted word count to a severity.
func PasteSeverity(words int) model.Severity {
	switch {
	case words > pasteCriticalWords:
		return model.SeverityCritical
	case words > pasteHighWords:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// CountWords returns the number of whitespace separated words in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// TypingSpeeds returns the trailing words-per-minute samples, oldest first.
func (a *AnswerBox) TypingSpeeds() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]float64, len(a.speeds))
	copy(out, a.speeds)
	return out
}

// Attach implements Detector.
func (a *AnswerBox) Attach(sink Sink) (Detach, error) {
	if a.field == nil {
		return nil, ErrNilSource
	}
	emit := emitter(a.clock, sink)

	var ls listeners
	ls.add(a.field.Listen(KindPaste, func(e *Event) {
		words := CountWords(e.Clipboard)
		emit(model.EventPasteAttempt, PasteSeverity(words), map[string]any{"word_count": words})
	}))
	ls.add(a.field.Listen(KindKeyUp, func(e *Event) {
		a.keyUp(e.Value, emit)
	}))
	return once(ls.removeAll), nil
}

func (a *AnswerBox) keyUp(value string, emit func(model.EventType, model.Severity, map[string]any)) {
	now := a.clock.Now()

	a.mu.Lock()
	delta := CountWords(value) - CountWords(a.last)
	elapsed := now.Sub(a.lastType)
	hadPrevious := !a.lastType.IsZero()
	a.last = value
	a.lastType = now

	if !hadPrevious || elapsed <= 0 {
		a.mu.Unlock()
		return
	}
	wpm := float64(delta) / elapsed.Minutes()
	a.speeds = append(a.speeds, math.Max(0, wpm))
	if len(a.speeds) > speedWindow {
		a.speeds = a.speeds[len(a.speeds)-speedWindow:]
	}
	a.mu.Unlock()

	if delta > burstWords && elapsed < burstWindow {
		emit(model.EventWordBurst, model.SeverityCritical, map[string]any{
			"words_inserted": delta,
			"time_ms":        elapsed.Milliseconds(),
		})
	}
	if wpm > fastTypingWPM {
		emit(model.EventTypingFast, model.SeverityMedium, map[string]any{"wpm": int(math.Round(wpm))})
	}
	if elapsed > longDelay && delta > longDelayMinWords {
		emit(model.EventLongDelay, model.SeverityMedium, map[string]any{"delay_ms": elapsed.Milliseconds()})
	}
}
