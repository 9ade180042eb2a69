package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/buttons"
	"github.com/sweeney/button-sensor/internal/clock"
	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/evq"
	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
)

// daemon wires the button task to the event queue, the publisher and the
// status tracker. Everything except the tracker is owned by the run loop.
type daemon struct {
	task  *buttons.Task
	queue *evq.Queue
	disp  *evq.Dispatcher
	// clk is the task's time base. It moves by one tick period per tick so
	// timers count ticks, not wall time.
	clk  *clock.Manual
	tick time.Duration

	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker

	heartbeat     time.Duration
	lastHeartbeat time.Time
	now           func() time.Time
}

func newDaemon(cfg *config.Config, src input.BitSource, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time) (*daemon, error) {
	start := now()
	clk := clock.NewManual(start)

	task, err := buttons.NewTask(cfg.Buttons, src, clk, cfg.Timing())
	if err != nil {
		return nil, fmt.Errorf("init buttons: %w", err)
	}

	d := &daemon{
		task:          task,
		queue:         evq.NewQueue(cfg.QueueCapacity),
		disp:          evq.NewDispatcher(),
		clk:           clk,
		tick:          cfg.Tick,
		publisher:     publisher,
		mqttStatus:    mqttStatus,
		tracker:       tracker,
		heartbeat:     cfg.Heartbeat,
		lastHeartbeat: start,
		now:           now,
	}

	task.SetEventQueue(buttons.EvButtonTask, d.queue)
	d.disp.Handle(buttons.EvButtonTask, task.OnButtonTick)
	for _, id := range []evq.EventID{buttons.EvPressed, buttons.EvReleased, buttons.EvStuck, buttons.EvUnstuck} {
		d.disp.Handle(id, d.publish)
	}
	return d, nil
}

// publish forwards a button notification to MQTT. Failures are logged and
// otherwise ignored.
func (d *daemon) publish(ev evq.Event, _ uint32) {
	n := buttons.NewNotification(ev, d.now())
	log.WithField("button", n.Button).Infof("event: %s", n.Name())
	if err := d.publisher.Publish(n); err != nil {
		log.Warnf("publish error: %v", err)
	}
}

// step runs one scheduler tick: the alarm posts the tick event, the
// dispatcher runs the task and publishes whatever it produced.
func (d *daemon) step() {
	d.clk.Advance(d.tick)
	d.task.Alarm().Poll(d.clk)
	d.disp.Drain(d.queue)

	d.updateStatus()

	if d.heartbeat > 0 {
		t := d.now()
		if t.Sub(d.lastHeartbeat) >= d.heartbeat {
			d.lastHeartbeat = t
			d.sendHeartbeat(t)
		}
	}
}

func (d *daemon) updateStatus() {
	if d.tracker == nil {
		return
	}
	d.tracker.Update(d.task.Snapshot(), status.Counts{
		Pressed:  d.task.Posted(buttons.EvPressed),
		Released: d.task.Posted(buttons.EvReleased),
		Stuck:    d.task.Posted(buttons.EvStuck),
		Unstuck:  d.task.Posted(buttons.EvUnstuck),
	}, d.queue.Dropped(), d.task.Alarm().Enabled())
	d.tracker.SetHealth(status.Health{
		Ticks:     d.task.Alarm().Fired(),
		Lost:      d.task.Dropped(),
		Unmatched: d.task.Unmatched(),
		Unhandled: d.disp.Unhandled(),
	})
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func (d *daemon) sendHeartbeat(t time.Time) {
	ev := mqtt.SystemEvent{Timestamp: t, Event: "HEARTBEAT"}
	if d.tracker != nil {
		if net := readNetworkInfo(); net != nil {
			d.tracker.SetNetwork(net)
		}
		snap := d.tracker.Snapshot()
		ev.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
		log.WithField("uptime", snap.Uptime().Truncate(time.Second)).Info("heartbeat")
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Warnf("heartbeat publish error: %v", err)
	}
}

func (d *daemon) shutdown(s os.Signal) {
	log.Infof("received %v, shutting down", s)
	name := "UNKNOWN"
	switch s {
	case syscall.SIGINT:
		name = "SIGINT"
	case syscall.SIGTERM:
		name = "SIGTERM"
	}

	ev := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     "SHUTDOWN",
		Reason:    name,
		Retained:  true,
	}
	if d.tracker != nil {
		d.updateStatus()
		ev.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", name)
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Warnf("failed to publish shutdown event: %v", err)
	} else {
		log.Info("published shutdown event")
	}
}

// runLoop steps the daemon on every tick until a signal arrives. Button
// state is left as is on shutdown.
func (d *daemon) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			d.shutdown(s)
			return nil
		case <-tick:
			d.step()
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
