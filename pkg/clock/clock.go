// Package clock abstracts the time operations used by timer-driven code.
//
// Production code takes Real(); tests take Fake() and move time forward
// explicitly with Advance.
package clock

import "time"

// Clock is the subset of the time package that detectors and the call
// endpoint depend on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once d has elapsed. Stop on the returned Timer
	// cancels a call that has not happened yet.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop cancels the call. It reports false when the call already
	// happened or was already stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
