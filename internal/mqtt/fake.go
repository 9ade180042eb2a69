package mqtt

import (
	"github.com/sweeney/button-sensor/internal/buttons"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// Session is stamped on recorded payloads.
	Session string

	// Events contains all button events that were published.
	Events []buttons.Notification
	// Payloads contains their JSON payloads.
	Payloads [][]byte

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError, if set, is returned by Publish.
	PublishError error
	// PublishSystemError, if set, is returned by PublishSystem.
	PublishSystemError error

	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the button event.
func (f *FakePublisher) Publish(n buttons.Notification) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(n, f.Session)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, n)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event, f.Session)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports the Connected field.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// EventNames returns the names of the recorded button events, in order.
func (f *FakePublisher) EventNames() []string {
	out := make([]string, len(f.Events))
	for i, n := range f.Events {
		out[i] = n.Name()
	}
	return out
}

// Reset clears everything recorded.
func (f *FakePublisher) Reset() {
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
