package evq

import (
	log "github.com/sirupsen/logrus"
)

// Handler consumes one dispatched event. extra is the dispatcher's guard
// word, passed through unchanged.
type Handler func(ev Event, extra uint32)

// drainLimit bounds a single Drain call so a handler that keeps re-posting
// cannot starve the caller.
const drainLimit = 256

// Dispatcher routes events to handlers by event id.
// Not safe for concurrent use; it is driven from the run loop only.
type Dispatcher struct {
	handlers  map[EventID]Handler
	unhandled int
}

// NewDispatcher creates an empty handler table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventID]Handler)}
}

// Handle registers h for id, replacing any previous handler.
func (d *Dispatcher) Handle(id EventID, h Handler) {
	if h == nil {
		delete(d.handlers, id)
		return
	}
	d.handlers[id] = h
}

// Dispatch invokes the handler registered for ev. It reports whether one was found.
func (d *Dispatcher) Dispatch(ev Event) bool {
	h, ok := d.handlers[ev.ID]
	if !ok {
		d.unhandled++
		log.WithField("event", ev.ID).Debug("evq: no handler for event")
		return false
	}
	h(ev, 0)
	return true
}

// Drain dispatches queued events, oldest first, until the queue is empty.
// Events posted by handlers during the drain are dispatched too.
// It returns the number of events taken from the queue.
func (d *Dispatcher) Drain(q *Queue) int {
	n := 0
	for n < drainLimit {
		ev, ok := q.Get()
		if !ok {
			break
		}
		d.Dispatch(ev)
		n++
	}
	return n
}

// Unhandled returns the number of events that had no registered handler.
func (d *Dispatcher) Unhandled() int {
	return d.unhandled
}
