// Package mqtt publishes button and system events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/button-sensor/internal/buttons"
)

// TimestampFormat is used for every timestamp in a payload. Presses can be
// a few hundred milliseconds apart, so milliseconds are kept.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Topics holds the topics derived from a base topic.
type Topics struct {
	Events string
	System string
}

// TopicsFor returns <base>/events and <base>/system.
func TopicsFor(base string) Topics {
	base = strings.TrimSuffix(base, "/")
	return Topics{
		Events: base + "/events",
		System: base + "/system",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a button event. Errors are reported but must never stop
	// the caller.
	Publish(n buttons.Notification) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event such as STARTUP, SHUTDOWN or HEARTBEAT.
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	// Reason is set on shutdown, e.g. "SIGTERM".
	Reason string
	// RawPayload, if set, is published as is.
	RawPayload []byte
	Retained   bool
}

// Payload is the MQTT message for a button event.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload contains the button event details.
type ButtonPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Index     int    `json:"index"`
	Session   string `json:"session,omitempty"`
}

// FormatPayload creates the JSON payload for a button event.
func FormatPayload(n buttons.Notification, session string) ([]byte, error) {
	return json.Marshal(Payload{
		Button: ButtonPayload{
			Timestamp: n.Timestamp.UTC().Format(TimestampFormat),
			Event:     n.Name(),
			Index:     n.Button,
			Session:   session,
		},
	})
}

// SystemPayload is the MQTT message for simple system events (last will,
// reconnects) that carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Session   string `json:"session,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// A set RawPayload is returned unchanged.
func FormatSystemPayload(event SystemEvent, session string) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(TimestampFormat),
			Event:     event.Event,
			Reason:    event.Reason,
			Session:   session,
		},
	})
}

type willInner struct {
	Event   string `json:"event"`
	Session string `json:"session,omitempty"`
}

// willPayload is registered as the last will. It has no timestamp since the
// broker sends it at an unknown time.
func willPayload(session string) []byte {
	b, _ := json.Marshal(map[string]willInner{
		"system": {Event: "OFFLINE", Session: session},
	})
	return b
}
