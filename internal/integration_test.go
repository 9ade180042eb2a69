package internal

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/buttons"
	"github.com/sweeney/button-sensor/internal/clock"
	"github.com/sweeney/button-sensor/internal/evq"
	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// pipeline is the run loop without the process around it: the alarm posts
// ticks, the dispatcher runs the task and forwards notifications to MQTT.
type pipeline struct {
	task    *buttons.Task
	queue   *evq.Queue
	disp    *evq.Dispatcher
	clk     *clock.Manual
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	cfg     buttons.Config
	errs    int
}

func newPipeline(t *testing.T, n int, src input.BitSource, queueCap int) *pipeline {
	t.Helper()
	cfg := buttons.DefaultConfig()
	clk := clock.NewManual(startTime)
	task, err := buttons.NewTask(n, src, clk, cfg)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}

	p := &pipeline{
		task:    task,
		queue:   evq.NewQueue(queueCap),
		disp:    evq.NewDispatcher(),
		clk:     clk,
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(startTime, "it", status.Config{Buttons: n}),
		cfg:     cfg,
	}
	task.SetEventQueue(buttons.EvButtonTask, p.queue)
	p.disp.Handle(buttons.EvButtonTask, task.OnButtonTick)
	publish := func(ev evq.Event, _ uint32) {
		if err := p.pub.Publish(buttons.NewNotification(ev, clk.Now())); err != nil {
			p.errs++
		}
	}
	for _, id := range []evq.EventID{buttons.EvPressed, buttons.EvReleased, buttons.EvStuck, buttons.EvUnstuck} {
		p.disp.Handle(id, publish)
	}
	return p
}

func (p *pipeline) run(ticks int) {
	for i := 0; i < ticks; i++ {
		p.clk.Advance(p.cfg.TickPeriod)
		p.task.Alarm().Poll(p.clk)
		p.disp.Drain(p.queue)
		p.tracker.Update(p.task.Snapshot(), status.Counts{
			Pressed:  p.task.Posted(buttons.EvPressed),
			Released: p.task.Posted(buttons.EvReleased),
			Stuck:    p.task.Posted(buttons.EvStuck),
			Unstuck:  p.task.Posted(buttons.EvUnstuck),
		}, p.queue.Dropped(), p.task.Alarm().Enabled())
	}
}

func assertEvents(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestIntegrationNoEventsAtStartup(t *testing.T) {
	p := newPipeline(t, 4, input.NewFake(), 0)
	p.run(100)

	if len(p.pub.Events) != 0 {
		t.Errorf("expected no events, got %v", p.pub.EventNames())
	}
	for _, b := range p.tracker.Snapshot().Buttons {
		if b.State != "released" {
			t.Errorf("button %d: got %s, want released", b.Index, b.State)
		}
	}
}

func TestIntegrationSimulatedPressAndRelease(t *testing.T) {
	sim, err := input.NewSim(2)
	if err != nil {
		t.Fatal(err)
	}
	p := newPipeline(t, 2, sim, 0)
	p.run(10)

	if err := sim.Press(1); err != nil {
		t.Fatal(err)
	}
	p.run(30)
	assertEvents(t, p.pub.EventNames(), "PRESSED")

	if err := sim.Release(1); err != nil {
		t.Fatal(err)
	}
	p.run(30)
	assertEvents(t, p.pub.EventNames(), "PRESSED", "RELEASED")

	for _, n := range p.pub.Events {
		if n.Button != 1 {
			t.Errorf("%s: got button %d, want 1", n.Name(), n.Button)
		}
	}
	if !p.pub.Events[1].Timestamp.After(p.pub.Events[0].Timestamp) {
		t.Error("release should be stamped after press")
	}
}

func TestIntegrationReleaseNoiseRejected(t *testing.T) {
	sim, _ := input.NewSim(1)
	p := newPipeline(t, 1, sim, 0)
	p.run(10)

	if err := sim.Load(0, input.NoisyReleasePattern, 64); err != nil {
		t.Fatal(err)
	}
	p.run(64)

	if len(p.pub.Events) != 0 {
		t.Errorf("noise produced events: %v", p.pub.EventNames())
	}
}

func TestIntegrationNoisyPressAndRelease(t *testing.T) {
	sim, _ := input.NewSim(1)
	p := newPipeline(t, 1, sim, 0)
	p.run(10)

	if err := sim.PressNoisy(0); err != nil {
		t.Fatal(err)
	}
	// the first debounce times out on the noise and the button twitches
	// back into debounce before the solid tail settles it
	p.run(60)
	if len(p.pub.Events) != 0 {
		t.Fatalf("noise reported before settling: %v", p.pub.EventNames())
	}
	p.run(60)
	assertEvents(t, p.pub.EventNames(), "PRESSED")

	if err := sim.ReleaseNoisy(0); err != nil {
		t.Fatal(err)
	}
	p.run(100)
	assertEvents(t, p.pub.EventNames(), "PRESSED", "RELEASED")
}

func TestIntegrationStuckThenUnstuck(t *testing.T) {
	src := input.NewFake()
	src.ScriptString(0, "1")
	p := newPipeline(t, 1, src, 0)

	stuckTicks := int(p.cfg.StuckTimeout / p.cfg.TickPeriod)
	p.run(stuckTicks + 40)
	assertEvents(t, p.pub.EventNames(), "PRESSED", "STUCK")

	src.ScriptString(0, "0")
	p.run(5)
	assertEvents(t, p.pub.EventNames(), "PRESSED", "STUCK", "UNSTUCK")

	if got := p.tracker.Snapshot().Buttons[0].State; got != "released" {
		t.Errorf("state after unstuck: got %s, want released", got)
	}
}

func TestIntegrationIndependentButtons(t *testing.T) {
	src := input.NewFake()
	src.ScriptString(0, "1")
	src.ScriptString(2, "1")
	p := newPipeline(t, 3, src, 0)
	p.run(30)

	assertEvents(t, p.pub.EventNames(), "PRESSED", "PRESSED")
	// higher indexes are stepped first within a tick
	if p.pub.Events[0].Button != 2 || p.pub.Events[1].Button != 0 {
		t.Errorf("order: got %d then %d, want 2 then 0", p.pub.Events[0].Button, p.pub.Events[1].Button)
	}
}

func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	src := input.NewFake()
	src.ScriptString(0, "1")
	p := newPipeline(t, 1, src, 0)
	p.pub.PublishError = errors.New("broker down")
	p.run(30)

	if p.errs != 1 {
		t.Errorf("publish errors: got %d, want 1", p.errs)
	}
	if p.task.Posted(buttons.EvPressed) != 1 {
		t.Errorf("posted PRESSED: got %d, want 1", p.task.Posted(buttons.EvPressed))
	}
	if !p.task.Alarm().Enabled() {
		t.Error("alarm should keep running")
	}
}

func TestIntegrationPayloadFormat(t *testing.T) {
	src := input.NewFake()
	src.ScriptString(3, "1")
	p := newPipeline(t, 4, src, 0)
	p.pub.Session = "abc"
	p.run(30)

	if len(p.pub.Payloads) != 1 {
		t.Fatalf("payloads: got %d, want 1", len(p.pub.Payloads))
	}
	var payload mqtt.Payload
	if err := json.Unmarshal(p.pub.Payloads[0], &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Button.Event != "PRESSED" {
		t.Errorf("event: got %q", payload.Button.Event)
	}
	if payload.Button.Index != 3 {
		t.Errorf("index: got %d, want 3", payload.Button.Index)
	}
	if payload.Button.Session != "abc" {
		t.Errorf("session: got %q", payload.Button.Session)
	}
	if _, err := time.Parse(mqtt.TimestampFormat, payload.Button.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", payload.Button.Timestamp, err)
	}
}

func TestIntegrationWebPressReachesMQTT(t *testing.T) {
	sim, _ := input.NewSim(2)
	p := newPipeline(t, 2, sim, 0)
	srv := web.New(":0", p.tracker, sim, p.task.Alarm())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	p.run(10)

	resp, err := http.Post(ts.URL+"/buttons/0/press", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("press: got %d, want 202", resp.StatusCode)
	}

	p.run(30)
	assertEvents(t, p.pub.EventNames(), "PRESSED")

	resp, err = http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatal(err)
	}
	if sj.Status.Buttons[0].State != "pressed" {
		t.Errorf("button 0: got %s, want pressed", sj.Status.Buttons[0].State)
	}
	if sj.Status.Counts.Pressed != 1 {
		t.Errorf("pressed count: got %d, want 1", sj.Status.Counts.Pressed)
	}
}

func TestIntegrationFullQueueDropsNotifications(t *testing.T) {
	src := input.NewFake()
	for i := 0; i < 4; i++ {
		src.ScriptString(i, "1")
	}
	// the tick has been taken off the queue when the task posts, so there
	// is room for exactly one of the four presses
	p := newPipeline(t, 4, src, 1)
	p.run(30)

	assertEvents(t, p.pub.EventNames(), "PRESSED")
	if p.pub.Events[0].Button != 3 {
		t.Errorf("delivered button: got %d, want 3", p.pub.Events[0].Button)
	}
	if p.task.Dropped() != 3 {
		t.Errorf("task dropped: got %d, want 3", p.task.Dropped())
	}
	if p.queue.Dropped() != 3 {
		t.Errorf("queue dropped: got %d, want 3", p.queue.Dropped())
	}
}
