package buttons

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/evq"
	"github.com/sweeney/button-sensor/internal/sme"
)

// table returns the button transition table. Rows are matched in order.
func (t *Task) table() sme.Table {
	row := func(cur sme.StateID, ev evq.EventID, reason sme.Reason, next sme.StateID, fn sme.Transition) sme.Row {
		return sme.Row{Current: cur, Event: ev, ReasonMask: reasonMask, Reason: reason, Next: next, Transition: fn}
	}

	return sme.Table{
		row(StateStart, EvButtonTask, ReasonNone, StateReleased, nil),
		row(StateReleased, EvButtonTask, ReasonTwitchNoted, StateDebouncePress, nil),

		row(StateDebouncePress, EvPressed, ReasonDebounced, StatePressed, t.notify),
		row(StateDebouncePress, EvReleased, ReasonDebounced, StateReleased, nil),
		row(StateDebouncePress, EvButtonTask, ReasonTimeout, StateReleased, nil),

		row(StatePressed, EvButtonTask, ReasonTwitchNoted, StateDebounceRelease, nil),
		row(StatePressed, EvButtonTask, ReasonTimeout, StateStuck, t.notify),

		row(StateDebounceRelease, EvReleased, ReasonDebounced, StateReleased, t.notify),
		row(StateDebounceRelease, EvPressed, ReasonDebounced, StatePressed, nil),
		// a release that never settles leaves the button pressed
		row(StateDebounceRelease, EvButtonTask, ReasonTimeout, StatePressed, nil),

		row(StateStuck, EvButtonTask, ReasonButtonUnstuck, StateReleased, t.notify),
	}
}

// notify turns a state exit into a published event and posts it. Posting
// never blocks; an event the queue cannot take is dropped.
func (t *Task) notify(ev evq.Event, reason sme.Reason) {
	out, ok := notification(ev, reason)
	if !ok {
		return
	}

	if t.queue == nil || !t.queue.PostEvent(out) {
		t.dropped++
		log.WithFields(log.Fields{
			"button": out.Data,
			"event":  EventName(out.ID),
		}).Debug("buttons: event queue full, dropping event")
		return
	}
	t.posted[out.ID]++
}

// notification maps an exit to the event published for it.
func notification(ev evq.Event, reason sme.Reason) (evq.Event, bool) {
	switch reason {
	case ReasonDebounced:
		if ev.ID != EvPressed && ev.ID != EvReleased {
			return evq.Event{}, false
		}
		return ev, true
	case ReasonTimeout:
		return evq.Event{ID: EvStuck, Data: ev.Data}, true
	case ReasonButtonUnstuck:
		return evq.Event{ID: EvUnstuck, Data: ev.Data}, true
	default:
		return evq.Event{}, false
	}
}

// IsNotification reports whether id is one of the events the task publishes.
func IsNotification(id evq.EventID) bool {
	switch id {
	case EvPressed, EvReleased, EvStuck, EvUnstuck:
		return true
	}
	return false
}

// Notification is a published button event as seen by consumers.
type Notification struct {
	Timestamp time.Time
	Event     evq.EventID
	Button    int
}

// NewNotification converts a queued button event taken at time at.
func NewNotification(ev evq.Event, at time.Time) Notification {
	return Notification{Timestamp: at, Event: ev.ID, Button: ev.Data}
}

// Name returns the published event name, e.g. "PRESSED".
func (n Notification) Name() string {
	return EventName(n.Event)
}
