// Package clock provides an injectable time abstraction so deferred
// actions can be tested without real delays. Production code injects
// Real(); tests inject Fake() and advance time explicitly.
package clock

import "time"

// Clock abstracts the time operations used by the schedulers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc waits for duration d, then calls f in its own
	// goroutine. The returned Timer cancels the pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call from firing. It returns false if the
	// call already fired or was already stopped.
	Stop() bool
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool { return r.t.Stop() }
