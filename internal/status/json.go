package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Session       string       `json:"session,omitempty"`
	Buttons       []ButtonJSON `json:"buttons"`
	AlarmEnabled  bool         `json:"alarm_enabled"`
	Dropped       int          `json:"dropped_events"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Health        HealthJSON   `json:"health"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        *ConfigJSON  `json:"config,omitempty"`
}

// ButtonJSON is one button's state.
type ButtonJSON struct {
	Index int    `json:"index"`
	State string `json:"state"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Pressed  int `json:"pressed"`
	Released int `json:"released"`
	Stuck    int `json:"stuck"`
	Unstuck  int `json:"unstuck"`
}

// HealthJSON is the JSON representation of the fault counters.
type HealthJSON struct {
	Ticks     int `json:"ticks"`
	Lost      int `json:"lost_notifications"`
	Unmatched int `json:"unmatched_transitions"`
	Unhandled int `json:"unhandled_events"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Buttons        int    `json:"buttons"`
	Source         string `json:"source"`
	TickMs         int64  `json:"tick_ms"`
	DebounceMs     int64  `json:"debounce_ms"`
	StuckTimeoutMs int64  `json:"stuck_timeout_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	Topic          string `json:"topic"`
	HTTPAddr       string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	btns := make([]ButtonJSON, len(snap.Buttons))
	for i, b := range snap.Buttons {
		btns[i] = ButtonJSON{Index: b.Index, State: b.State}
	}

	inner := StatusInner{
		Session:       snap.Session,
		Buttons:       btns,
		AlarmEnabled:  snap.AlarmEnabled,
		Dropped:       snap.Dropped,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Pressed:  snap.Counts.Pressed,
			Released: snap.Counts.Released,
			Stuck:    snap.Counts.Stuck,
			Unstuck:  snap.Counts.Unstuck,
		},
		Health: HealthJSON(snap.Health),
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

func buildConfig(c Config) *ConfigJSON {
	return &ConfigJSON{
		Buttons:        c.Buttons,
		Source:         c.Source,
		TickMs:         c.TickMs,
		DebounceMs:     c.DebounceMs,
		StuckTimeoutMs: c.StuckTimeoutMs,
		HeartbeatMs:    c.HeartbeatMs,
		Broker:         c.Broker,
		Topic:          c.Topic,
		HTTPAddr:       c.HTTPAddr,
	}
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	inner.Config = buildConfig(snap.Config)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Config is only included on STARTUP.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	if event == "STARTUP" {
		inner.Config = buildConfig(snap.Config)
	}

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
