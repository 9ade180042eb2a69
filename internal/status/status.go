// Package status provides a thread-safe status tracker for the button-sensor
// daemon. The run loop writes it; HTTP handlers and system events read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/button-sensor/internal/buttons"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Buttons        int
	Source         string
	TickMs         int64
	DebounceMs     int64
	StuckTimeoutMs int64
	HeartbeatMs    int64
	Broker         string
	Topic          string
	HTTPAddr       string
}

// Counts holds the number of each published button event.
type Counts struct {
	Pressed  int
	Released int
	Stuck    int
	Unstuck  int
}

// Health holds the scheduler's fault counters.
type Health struct {
	// Ticks is the number of tick events the alarm has posted.
	Ticks int
	// Lost counts notifications the queue did not accept.
	Lost int
	// Unmatched counts state exits with no transition row.
	Unmatched int
	// Unhandled counts dispatched events with no handler.
	Unhandled int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; the Buttons slice is a copy.
type Snapshot struct {
	Buttons       []buttons.ButtonStatus
	Counts        Counts
	Dropped       int
	Health        Health
	AlarmEnabled  bool
	Session       string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time, session id and
// config.
func NewTracker(startTime time.Time, session string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Session:   session,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update replaces the per-button state and the counters.
// Called from the run loop after every tick.
func (t *Tracker) Update(btns []buttons.ButtonStatus, counts Counts, dropped int, alarmEnabled bool) {
	cp := append([]buttons.ButtonStatus(nil), btns...)

	t.mu.Lock()
	t.snap.Buttons = cp
	t.snap.Counts = counts
	t.snap.Dropped = dropped
	t.snap.AlarmEnabled = alarmEnabled
	t.mu.Unlock()
}

// SetHealth replaces the fault counters.
func (t *Tracker) SetHealth(h Health) {
	t.mu.Lock()
	t.snap.Health = h
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a copy of the daemon state with Now set to the time of
// the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buttons = append([]buttons.ButtonStatus(nil), t.snap.Buttons...)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
