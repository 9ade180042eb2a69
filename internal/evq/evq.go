// Package evq provides a small bounded event queue and a handler table that
// routes queued events to their consumers.
//
// Posting is fire-and-forget: a full queue rejects the new event and the
// caller decides whether that matters.
package evq

import (
	"fmt"
	"sync"
)

// EventID identifies an event type. Zero means "no event".
type EventID uint16

// None is the zero event id; it is never posted.
const None EventID = 0

// Event is a single queued event.
type Event struct {
	ID EventID
	// Data carries the event detail. Button events store the button index here.
	Data int
}

func (e Event) String() string {
	return fmt.Sprintf("event(%d, data=%d)", e.ID, e.Data)
}

// Poster accepts events for later dispatch.
type Poster interface {
	// PostEvent enqueues ev. It returns false if the event was not accepted.
	PostEvent(ev Event) bool
}

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 32

// Queue is a fixed-capacity FIFO of events. Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	buf     []Event
	head    int // next read position
	count   int
	dropped int
}

// NewQueue creates a queue holding at most capacity events.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]Event, capacity)}
}

// PostEvent appends ev to the queue. When the queue is full the event is
// dropped and false is returned; queued events are never overwritten.
func (q *Queue) PostEvent(ev Event) bool {
	if ev.ID == None {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.buf) {
		q.dropped++
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ev
	q.count++
	return true
}

// Get removes and returns the oldest event.
func (q *Queue) Get() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Event{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return ev, true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Dropped returns how many events were rejected because the queue was full.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
