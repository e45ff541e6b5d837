package detect

import (
	"context"
	"sync"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/clock"
	"github.com/okian/vigil/pkg/logger"
)

// Fullscreen emits fullscreen_exit / fullscreen_enter and re-requests
// fullscreen shortly after an exit the candidate caused.
type Fullscreen struct {
	page   Page
	clock  clock.Clock
	logger logger.Logger

	mu          sync.Mutex
	intentional bool
	retry       clock.Timer
	attached    bool
}

// NewFullscreen returns a fullscreen detector for page.
func NewFullscreen(page Page, opts ...Option) *Fullscreen {
	o := newOptions(0, opts)
	return &Fullscreen{page: page, clock: o.clock, logger: o.logger.Named("fullscreen")}
}

// Name implements Detector.
func (f *Fullscreen) Name() string { return "fullscreen" }

// MarkIntentionalExit flags the next exit as requested by the host, for
// example when the interview ends. That exit emits nothing and is not
// re-requested.
func (f *Fullscreen) MarkIntentionalExit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intentional = true
}

// Attach implements Detector. It also asks the page to enter fullscreen.
func (f *Fullscreen) Attach(sink Sink) (Detach, error) {
	if f.page == nil {
		return nil, ErrNilSource
	}
	emit := emitter(f.clock, sink)

	f.mu.Lock()
	f.attached = true
	f.mu.Unlock()

	remove := f.page.Listen(KindFullscreenChange, func(e *Event) {
		if e.Fullscreen {
			emit(model.EventFullscreenEnter, model.SeverityLow, nil)
			return
		}

		f.mu.Lock()
		if f.intentional {
			f.intentional = false
			f.mu.Unlock()
			return
		}
		if f.attached {
			if f.retry != nil {
				f.retry.Stop()
			}
			f.retry = f.clock.AfterFunc(fullscreenRetryDelay, f.request)
		}
		f.mu.Unlock()

		emit(model.EventFullscreenExit, model.SeverityHigh, nil)
	})

	f.request()

	return once(func() {
		remove()
		f.mu.Lock()
		f.attached = false
		if f.retry != nil {
			f.retry.Stop()
			f.retry = nil
		}
		f.mu.Unlock()
	}), nil
}

func (f *Fullscreen) request() {
	f.mu.Lock()
	attached := f.attached
	f.mu.Unlock()
	if !attached {
		return
	}
	if err := f.page.RequestFullscreen(); err != nil {
		f.logger.Debug(context.Background(), "fullscreen request denied", logger.Error(err))
	}
}
