package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/buttons"
	"github.com/sweeney/button-sensor/internal/clock"
	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/status"
)

func newTracker() *status.Tracker {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return status.NewTracker(start, "s1", status.Config{
		Buttons:     2,
		Source:      "sim",
		TickMs:      10,
		DebounceMs:  600,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		Topic:       "buttons",
		HTTPAddr:    ":8080",
	})
}

func newTestServer(t *testing.T, board Board, alarm Resumer) (*httptest.Server, *status.Tracker) {
	t.Helper()
	tr := newTracker()
	srv := New(":0", tr, board, alarm)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func post(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil, nil)
	tr.Update([]buttons.ButtonStatus{{Index: 0, State: "pressed"}, {Index: 1, State: "released"}},
		status.Counts{Pressed: 5, Released: 4}, 1, true)
	tr.SetMQTTConnected(true)
	tr.SetHealth(status.Health{Ticks: 500, Unmatched: 2})

	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.Health.Ticks != 500 || sj.Status.Health.Unmatched != 2 {
		t.Errorf("Health: got %+v", sj.Status.Health)
	}
	if len(sj.Status.Buttons) != 2 || sj.Status.Buttons[0].State != "pressed" {
		t.Errorf("Buttons: got %+v", sj.Status.Buttons)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.Pressed != 5 {
		t.Errorf("Counts.Pressed: got %d, want 5", sj.Status.Counts.Pressed)
	}
	if sj.Status.Dropped != 1 {
		t.Errorf("Dropped: got %d, want 1", sj.Status.Dropped)
	}
	if sj.Status.Session != "s1" {
		t.Errorf("Session: got %q", sj.Status.Session)
	}
	if sj.Status.Config == nil || sj.Status.Config.DebounceMs != 600 {
		t.Errorf("Config: got %+v", sj.Status.Config)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, nil, nil)
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Network == nil || sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network: got %+v", sj.Status.Network)
	}
}

func TestHTMLEndpoints(t *testing.T) {
	ts, tr := newTestServer(t, nil, nil)
	tr.Update([]buttons.ButtonStatus{{Index: 0, State: "stuck"}}, status.Counts{}, 0, false)

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
		if !strings.Contains(string(body), `class="stuck"`) {
			t.Errorf("%s: stuck button not rendered", path)
		}
		if !strings.Contains(string(body), "/alarm/resume") {
			t.Errorf("%s: stopped scheduler should offer resume", path)
		}
		if strings.Contains(string(body), "/buttons/0/press") {
			t.Errorf("%s: press controls shown without a simulated board", path)
		}
	}
}

func TestHTMLShowsControlsForSimulatedBoard(t *testing.T) {
	sim, _ := input.NewSim(2)
	ts, tr := newTestServer(t, sim, nil)
	tr.Update([]buttons.ButtonStatus{{Index: 0, State: "released"}, {Index: 1, State: "released"}}, status.Counts{}, 0, true)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), "/buttons/1/release") {
		t.Error("expected release control for button 1")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestPressAndRelease(t *testing.T) {
	sim, err := input.NewSim(2)
	if err != nil {
		t.Fatal(err)
	}
	ts, _ := newTestServer(t, sim, nil)

	resp, body := post(t, ts.URL+"/buttons/1/press")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("press status: got %d (%s)", resp.StatusCode, body)
	}
	if !strings.Contains(body, `"action":"press"`) || !strings.Contains(body, `"button":1`) {
		t.Errorf("press body: %s", body)
	}
	if !sim.Pressed(1) {
		t.Error("button 1 should be pressed")
	}
	if sim.Pending(1) != input.CleanPatternWidth {
		t.Errorf("pending bits: got %d, want %d", sim.Pending(1), input.CleanPatternWidth)
	}

	resp, _ = post(t, ts.URL+"/buttons/1/release")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("release status: got %d", resp.StatusCode)
	}
	if sim.Pressed(1) {
		t.Error("button 1 should be released")
	}
}

func TestPressErrors(t *testing.T) {
	sim, _ := input.NewSim(2)
	ts, _ := newTestServer(t, sim, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/buttons/x/press", http.StatusBadRequest},
		{"/buttons/2/press", http.StatusNotFound},
		{"/buttons/-1/release", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, body := post(t, ts.URL+tt.path)
		if resp.StatusCode != tt.want {
			t.Errorf("%s: got %d, want %d (%s)", tt.path, resp.StatusCode, tt.want, body)
		}
	}

	resp, err := http.Get(ts.URL + "/buttons/0/press")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET press: got %d, want 405", resp.StatusCode)
	}
}

func TestPressWithoutBoard(t *testing.T) {
	ts, _ := newTestServer(t, nil, nil)

	resp, _ := post(t, ts.URL+"/buttons/0/press")
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", resp.StatusCode)
	}
	resp, _ = post(t, ts.URL+"/alarm/resume")
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("resume status: got %d, want 501", resp.StatusCode)
	}
}

func TestAlarmResume(t *testing.T) {
	alarm := clock.NewAlarm(0, 10*time.Millisecond)
	alarm.Disable()
	ts, _ := newTestServer(t, nil, alarm)

	resp, body := post(t, ts.URL+"/alarm/resume")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status: got %d (%s)", resp.StatusCode, body)
	}
	if !alarm.Enabled() {
		t.Error("alarm should be enabled")
	}
	if strings.Contains(body, "button") {
		t.Errorf("resume body should not name a button: %s", body)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, nil, nil)

	if sj := getJSON(t, ts.URL+"/index.json"); len(sj.Status.Buttons) != 0 {
		t.Errorf("expected no buttons before the first tick, got %d", len(sj.Status.Buttons))
	}

	tr.Update([]buttons.ButtonStatus{{Index: 0, State: "debounce-press"}}, status.Counts{}, 0, true)
	tr.SetMQTTConnected(true)

	sj := getJSON(t, ts.URL+"/index.json")
	if len(sj.Status.Buttons) != 1 || sj.Status.Buttons[0].State != "debounce-press" {
		t.Errorf("Buttons: got %+v", sj.Status.Buttons)
	}
	if !sj.Status.AlarmEnabled {
		t.Error("expected alarm enabled")
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{time.Hour + 5*time.Second, "1h 0m 5s"},
		{49*time.Hour + 3*time.Minute + 1500*time.Millisecond, "2d 1h 3m 1s"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v): got %q, want %q", tt.d, got, tt.want)
		}
	}
}
