// Package clock abstracts wall-clock time and timers so that debounce
// and retry behavior can be driven deterministically in tests.
package clock

import "time"

// Timer is the controllable handle returned by AfterFunc.
type Timer interface {
	// Reset re-arms the timer to fire after d. Returns true if the
	// timer was still pending.
	Reset(d time.Duration) bool
	// Stop prevents the timer from firing. Returns true if it was
	// still pending.
	Stop() bool
}

// Clock provides the time operations the services depend on.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	// AfterFunc arranges for f to run after d.
	AfterFunc(d time.Duration, f func()) Timer
	// NewTicker returns a channel delivering ticks every d.
	NewTicker(d time.Duration) Ticker
}

// Ticker wraps the periodic tick channel.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

// New returns the wall-clock backed implementation.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Reset(d time.Duration) bool {
	return r.t.Reset(d)
}

func (r realTimer) Stop() bool {
	return r.t.Stop()
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r realTicker) Stop() {
	r.t.Stop()
}
