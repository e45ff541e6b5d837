package detect

import (
	"sort"
	"sync"
)

// Bus is an in-memory Page. Events are pushed with Dispatch; it backs
// recorded-trace replay and tests.
type Bus struct {
	mu         sync.Mutex
	next       int
	listeners  map[EventKind]map[int]func(*Event)
	size       WindowSize
	fullscreen func() error
	requests   int
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[EventKind]map[int]func(*Event))}
}

// Listen registers fn for kind.
func (b *Bus) Listen(kind EventKind, fn func(*Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	if b.listeners[kind] == nil {
		b.listeners[kind] = make(map[int]func(*Event))
	}
	b.listeners[kind][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners[kind], id)
	}
}

// Dispatch delivers e to every listener of its kind in registration order
// and returns it so callers can inspect DefaultPrevented.
func (b *Bus) Dispatch(e Event) *Event {
	b.mu.Lock()
	ids := make([]int, 0, len(b.listeners[e.Kind]))
	for id := range b.listeners[e.Kind] {
		ids = append(ids, id)
	}
	fns := make([]func(*Event), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, b.listeners[e.Kind][id])
	}
	b.mu.Unlock()

	ev := &e
	for _, fn := range fns {
		fn(ev)
	}
	return ev
}

// ListenerCount returns the number of listeners on kind.
func (b *Bus) ListenerCount(kind EventKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[kind])
}

// TotalListeners returns the number of listeners across all kinds.
func (b *Bus) TotalListeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.listeners {
		n += len(m)
	}
	return n
}

// SetWindowSize sets the size reported by WindowSize.
func (b *Bus) SetWindowSize(s WindowSize) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size = s
}

// WindowSize returns the last size set.
func (b *Bus) WindowSize() WindowSize {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// OnFullscreenRequest installs the handler run by RequestFullscreen.
func (b *Bus) OnFullscreenRequest(fn func() error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fullscreen = fn
}

// RequestFullscreen counts the request and runs the installed handler.
func (b *Bus) RequestFullscreen() error {
	b.mu.Lock()
	b.requests++
	fn := b.fullscreen
	b.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn()
}

// FullscreenRequests returns how many times RequestFullscreen was called.
func (b *Bus) FullscreenRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}
