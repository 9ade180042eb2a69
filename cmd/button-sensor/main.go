// Command button-sensor debounces push buttons and publishes presses,
// releases and stuck buttons to MQTT.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

var (
	app        = kingpin.New("button-sensor", "Debounced push buttons over MQTT.")
	debug      = app.Flag("debug", "Turn on debug logging.").Bool()
	configPath = app.Flag("config", "Path to a YAML config file.").Short('c').String()

	start     = app.Command("start", "Start the sensor daemon.")
	buttonsN  = start.Flag("buttons", "Number of buttons (overrides config).").Int()
	source    = start.Flag("source", "Input source: sim or gpio (overrides config).").Enum(config.SourceSim, config.SourceGPIO)
	broker    = start.Flag("broker", "MQTT broker address (overrides config).").String()
	topic     = start.Flag("topic", "Base MQTT topic (overrides config).").String()
	httpAddr  = start.Flag("http", "HTTP status address (overrides config).").String()
	noHTTP    = start.Flag("no-http", "Disable the HTTP status server.").Bool()
	heartbeat = start.Flag("heartbeat", "Heartbeat interval (overrides config).").Duration()

	state   = app.Command("state", "Print the current level of every button and exit.")
	version = app.Command("version", "Show current version.")
)

var buildTime, buildVersion string

func showVersion() {
	if buildTime != "" && buildVersion != "" {
		fmt.Printf("%s (built: %s)\n", buildVersion, buildTime)
	} else {
		fmt.Println("button-sensor: dev")
	}
}

func main() {
	cmd, err := app.Parse(os.Args[1:])
	if err != nil {
		fmt.Printf("%v: Try --help\n", err.Error())
		os.Exit(1)
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if *debug {
		log.Info("Enabling debug output...")
		log.SetLevel(log.DebugLevel)
	}

	switch cmd {
	case version.FullCommand():
		showVersion()
		return
	case start.FullCommand(), state.FullCommand():
	default:
		kingpin.FatalUsage("Unrecognized command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if cmd == state.FullCommand() {
		err = printState(os.Stdout, cfg)
	} else {
		err = run(cfg)
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyFlags copies the flags the user set over the loaded config.
func applyFlags(cfg *config.Config) {
	if *buttonsN > 0 {
		cfg.Buttons = *buttonsN
	}
	if *source != "" {
		cfg.Input.Source = *source
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if *topic != "" {
		cfg.MQTT.Topic = *topic
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *noHTTP {
		cfg.HTTP.Addr = ""
	}
	if *heartbeat > 0 {
		cfg.Heartbeat = *heartbeat
	}
}

// closingSource is a bit source that holds hardware resources.
type closingSource interface {
	input.BitSource
	Close() error
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openInput returns the configured bit source. sim is non-nil only for the
// simulated board.
func openInput(cfg *config.Config) (src input.BitSource, sim *input.Sim, closer io.Closer, err error) {
	switch cfg.Input.Source {
	case config.SourceGPIO:
		var lines closingSource
		lines, err = input.NewLines(cfg.Input.Chip, cfg.Input.Pins, cfg.Input.ActiveLow)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init gpio: %w", err)
		}
		return lines, nil, lines, nil
	default:
		sim, err = input.NewSim(cfg.Buttons)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init sim: %w", err)
		}
		return sim, sim, nopCloser{}, nil
	}
}

func printState(w io.Writer, cfg *config.Config) error {
	src, _, closer, err := openInput(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	for i := 0; i < cfg.Buttons; i++ {
		level := "RELEASED"
		if src.ReadNextInputBit(i) {
			level = "PRESSED"
		}
		fmt.Fprintf(w, "button %d: %s\n", i, level)
	}
	return nil
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Buttons:        cfg.Buttons,
		Source:         cfg.Input.Source,
		TickMs:         cfg.Tick.Milliseconds(),
		DebounceMs:     cfg.Debounce.Milliseconds(),
		StuckTimeoutMs: cfg.StuckTimeout.Milliseconds(),
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		Topic:          cfg.MQTT.Topic,
		HTTPAddr:       cfg.HTTP.Addr,
	}
}

func run(cfg *config.Config) error {
	src, sim, closer, err := openInput(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	session := uuid.NewString()
	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "button-sensor-" + session[:8]
	}

	publisher := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: clientID,
		Topics:   mqtt.TopicsFor(cfg.MQTT.Topic),
		Session:  session,
	})
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), session, statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d, err := newDaemon(cfg, src, publisher, publisher, tracker, time.Now)
	if err != nil {
		return err
	}
	d.updateStatus()

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Warnf("failed to publish startup event: %v", err)
	}

	if cfg.HTTP.Addr != "" {
		var board web.Board
		if sim != nil {
			board = sim
		}
		srv := web.New(cfg.HTTP.Addr, tracker, board, d.task.Alarm())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warnf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.WithFields(log.Fields{
		"buttons":  cfg.Buttons,
		"source":   cfg.Input.Source,
		"tick":     cfg.Tick,
		"debounce": cfg.Debounce,
		"broker":   cfg.MQTT.Broker,
		"session":  session,
	}).Info("started")

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.runLoop(ticker.C, sigCh)
}
