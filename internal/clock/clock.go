// Package clock provides the deferred-callback primitive used for debouncing
// and reconnect delays, with a manual implementation for tests.
package clock

import (
	"sync"
	"time"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or was already stopped.
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

// Real schedules callbacks on the runtime timer.
func Real(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake records scheduled callbacks and runs them only when told to.
type Fake struct {
	mu     sync.Mutex
	timers []*FakeTimer

	// Scheduled receives every timer as it is created.
	Scheduled chan *FakeTimer
}

// NewFake creates a Fake with a buffered Scheduled channel.
func NewFake() *Fake {
	return &Fake{Scheduled: make(chan *FakeTimer, 64)}
}

// AfterFunc implements AfterFunc.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	t := &FakeTimer{Delay: d, fn: fn}

	f.mu.Lock()
	f.timers = append(f.timers, t)
	f.mu.Unlock()

	select {
	case f.Scheduled <- t:
	default:
	}
	return t
}

// Pending returns timers that have neither fired nor been stopped.
func (f *Fake) Pending() []*FakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()

	var pending []*FakeTimer
	for _, t := range f.timers {
		if t.pending() {
			pending = append(pending, t)
		}
	}
	return pending
}

// FireAll runs every pending timer and returns how many ran.
func (f *Fake) FireAll() int {
	fired := 0
	for _, t := range f.Pending() {
		if t.Fire() {
			fired++
		}
	}
	return fired
}

// FakeTimer is a timer created by Fake.
type FakeTimer struct {
	Delay time.Duration

	mu      sync.Mutex
	fn      func()
	fired   bool
	stopped bool
}

// Stop implements Timer.
func (t *FakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Fire runs the callback synchronously unless the timer was stopped or
// already fired.
func (t *FakeTimer) Fire() bool {
	t.mu.Lock()
	if t.fired || t.stopped {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	fn := t.fn
	t.mu.Unlock()

	fn()
	return true
}

// Stopped reports whether Stop cancelled the timer.
func (t *FakeTimer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *FakeTimer) pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.fired && !t.stopped
}
