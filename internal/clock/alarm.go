package clock

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/evq"
)

// Alarm posts an event to a queue every time its countdown runs out and then
// reloads itself. A disabled alarm keeps its configuration and resumes when
// re-enabled.
type Alarm struct {
	mu      sync.Mutex
	first   time.Duration
	reload  time.Duration
	queue   evq.Poster
	event   evq.EventID
	enabled bool
	due     time.Time
	started bool
	fired   int
}

// NewAlarm returns an enabled alarm that first fires after first and then
// every reload.
func NewAlarm(first, reload time.Duration) *Alarm {
	return &Alarm{
		first:   first,
		reload:  reload,
		enabled: true,
	}
}

// SetTarget sets the queue and event id posted on expiry.
func (a *Alarm) SetTarget(q evq.Poster, id evq.EventID) {
	a.mu.Lock()
	a.queue = q
	a.event = id
	a.mu.Unlock()
}

// Enable re-arms the alarm. The next expiry is one reload period from the
// next Poll.
func (a *Alarm) Enable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		a.enabled = true
		a.started = false
		a.first = a.reload
	}
}

// Disable stops the alarm from firing.
func (a *Alarm) Disable() {
	a.mu.Lock()
	a.enabled = false
	a.mu.Unlock()
}

// Enabled reports whether the alarm is armed.
func (a *Alarm) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Fired returns how many events the alarm has posted.
func (a *Alarm) Fired() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fired
}

// Poll checks the countdown against c and posts the alarm event when it has
// expired. It reports whether an event was posted.
func (a *Alarm) Poll(c Clock) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled || a.queue == nil || a.event == evq.None {
		return false
	}

	now := c.Now()
	if !a.started {
		a.started = true
		a.due = now.Add(a.first)
	}
	if now.Before(a.due) {
		return false
	}

	a.due = now.Add(a.reload)
	if !a.queue.PostEvent(evq.Event{ID: a.event}) {
		log.WithField("event", a.event).Debug("alarm: queue full, tick dropped")
		return false
	}
	a.fired++
	return true
}
