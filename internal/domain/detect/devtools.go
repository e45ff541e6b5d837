package detect

import (
	"sync"
	"time"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/clock"
)

// devtoolsGap is the outer/inner size difference, on either axis, taken
// to mean a docked devtools panel.
const devtoolsGap = 200

// Devtools samples the window size and emits devtools_open when the gap
// between outer and inner size opens. It stays quiet while the panel
// remains open and re-arms once it closes.
type Devtools struct {
	page     Page
	clock    clock.Clock
	interval time.Duration

	mu   sync.Mutex
	open bool
}

// NewDevtools returns a devtools poller for page.
func NewDevtools(page Page, opts ...Option) *Devtools {
	o := newOptions(DefaultDevtoolsInterval, opts)
	return &Devtools{page: page, clock: o.clock, interval: o.interval}
}

// Name implements Detector.
func (d *Devtools) Name() string { return "devtools" }

// Attach implements Detector.
func (d *Devtools) Attach(sink Sink) (Detach, error) {
	if d.page == nil {
		return nil, ErrNilSource
	}
	emit := emitter(d.clock, sink)
	p := newPoller(d.clock, d.interval, func() { d.sample(emit) })
	p.start()
	return once(p.stop), nil
}

func (d *Devtools) sample(emit func(model.EventType, model.Severity, map[string]any)) {
	s := d.page.WindowSize()
	widthDiff := s.OuterWidth - s.InnerWidth
	heightDiff := s.OuterHeight - s.InnerHeight
	isOpen := widthDiff > devtoolsGap || heightDiff > devtoolsGap

	d.mu.Lock()
	opened := isOpen && !d.open
	d.open = isOpen
	d.mu.Unlock()

	if opened {
		emit(model.EventDevtoolsOpen, model.SeverityCritical, map[string]any{
			"width_diff":  widthDiff,
			"height_diff": heightDiff,
		})
	}
}
