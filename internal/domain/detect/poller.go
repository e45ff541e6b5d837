package detect

import (
	"sync"
	"time"

	"github.com/okian/vigil/pkg/clock"
)

// poller runs fn every interval on the clock until stopped. A tick that
// is still running when stop is called finishes, but no further tick is
// scheduled.
type poller struct {
	clock    clock.Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   clock.Timer
	stopped bool
}

func newPoller(c clock.Clock, interval time.Duration, fn func()) *poller {
	return &poller{clock: c, interval: interval, fn: fn}
}

func (p *poller) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduleLocked()
}

func (p *poller) scheduleLocked() {
	if p.stopped {
		return
	}
	p.timer = p.clock.AfterFunc(p.interval, p.tick)
}

func (p *poller) tick() {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return
	}

	p.fn()

	p.mu.Lock()
	p.scheduleLocked()
	p.mu.Unlock()
}

func (p *poller) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
	}
}
