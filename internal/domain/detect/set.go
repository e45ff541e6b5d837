package detect

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/vigil/pkg/logger"
)

// Status is the attachment state of a detector in a Set.
type Status string

// Detector statuses.
const (
	StatusActive      Status = "active"
	StatusUnavailable Status = "unavailable"
	StatusDetached    Status = "detached"
)

// Set attaches a group of detectors to one sink. A detector that fails to
// attach is marked unavailable; the failure never reaches the caller.
type Set struct {
	logger logger.Logger

	mu     sync.Mutex
	status map[string]Status
}

// NewSet returns an empty Set.
func NewSet(opts ...Option) *Set {
	o := newOptions(0, opts)
	return &Set{logger: o.logger.Named("detect"), status: make(map[string]Status)}
}

// Attach attaches every detector to sink and returns a Detach that
// detaches all of them in reverse order.
func (s *Set) Attach(sink Sink, detectors ...Detector) Detach {
	ctx := context.Background()
	detaches := make([]Detach, 0, len(detectors))
	names := make([]string, 0, len(detectors))

	for _, d := range detectors {
		if d == nil {
			continue
		}
		name := d.Name()
		detach, err := safeAttach(d, sink)
		if err != nil {
			s.setStatus(name, StatusUnavailable)
			s.logger.Warn(ctx, "detector unavailable", logger.String("detector", name), logger.Error(err))
			continue
		}
		s.setStatus(name, StatusActive)
		detaches = append(detaches, detach)
		names = append(names, name)
	}

	return once(func() {
		for i := len(detaches) - 1; i >= 0; i-- {
			detaches[i]()
			s.setStatus(names[i], StatusDetached)
		}
	})
}

// Status returns a copy of every detector's status keyed by name.
func (s *Set) Status() map[string]Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Status, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

func (s *Set) setStatus(name string, st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[name] = st
}

func safeAttach(d Detector, sink Sink) (detach Detach, err error) {
	defer func() {
		if r := recover(); r != nil {
			detach = nil
			err = fmt.Errorf("attach %s panicked: %v", d.Name(), r)
		}
	}()
	detach, err = d.Attach(sink)
	if err == nil && detach == nil {
		detach = func() {}
	}
	return detach, err
}
