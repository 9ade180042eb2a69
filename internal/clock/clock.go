// Package clock provides the time source, countdown timers and the periodic
// alarm that drives the button task.
//
// Timers are polled: expiry is only observed when the owner asks.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Manual is a clock that only moves when told to. The run loop advances it
// by one tick period per scheduler tick, so timers count ticks rather than
// wall time.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock set to start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the clock's current time.
func (f *Manual) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Manual) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Timer is a countdown armed against a Clock. The zero value is unarmed,
// and an unarmed timer reports itself as expired.
type Timer struct {
	deadline time.Time
	armed    bool
}

// Set arms the timer to expire d after c.Now().
func (t *Timer) Set(c Clock, d time.Duration) {
	t.deadline = c.Now().Add(d)
	t.armed = true
}

// Expired reports whether the timer has run out.
func (t Timer) Expired(c Clock) bool {
	if !t.armed {
		return true
	}
	return !c.Now().Before(t.deadline)
}
