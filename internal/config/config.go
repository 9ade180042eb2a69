// Package config loads the sensor configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/button-sensor/internal/buttons"
	"github.com/sweeney/button-sensor/internal/evq"
)

// Input sources.
const (
	SourceSim  = "sim"
	SourceGPIO = "gpio"
)

const (
	defaultButtons   = 4
	defaultHeartbeat = 15 * time.Minute
	defaultBroker    = "tcp://192.168.1.200:1883"
	defaultTopic     = "buttons"
	defaultHTTPAddr  = ":8080"
	defaultChip      = "gpiochip0"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config is the complete sensor configuration.
type Config struct {
	Buttons       int           `yaml:"buttons"`
	Tick          time.Duration `yaml:"tick"`
	Debounce      time.Duration `yaml:"debounce"`
	StuckTimeout  time.Duration `yaml:"stuckTimeout"`
	QueueCapacity int           `yaml:"queueCapacity"`
	// Heartbeat is the system heartbeat interval; 0 disables it.
	Heartbeat time.Duration `yaml:"heartbeat"`

	Input struct {
		Source    string `yaml:"source"`
		Chip      string `yaml:"chip"`
		Pins      []int  `yaml:"pins"`
		ActiveLow bool   `yaml:"activeLow"`
	} `yaml:"input"`

	MQTT struct {
		Broker   string `yaml:"broker"`
		ClientID string `yaml:"clientId"`
		Topic    string `yaml:"topic"`
	} `yaml:"mqtt"`

	HTTP struct {
		// Addr is the status server address; empty disables it.
		Addr string `yaml:"addr"`
	} `yaml:"http"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	timing := buttons.DefaultConfig()
	c := &Config{
		Buttons:       defaultButtons,
		Tick:          timing.TickPeriod,
		Debounce:      timing.DebounceTime,
		StuckTimeout:  timing.StuckTimeout,
		QueueCapacity: evq.DefaultCapacity,
		Heartbeat:     defaultHeartbeat,
	}
	c.Input.Source = SourceSim
	c.Input.Chip = defaultChip
	c.MQTT.Broker = defaultBroker
	c.MQTT.Topic = defaultTopic
	c.HTTP.Addr = defaultHTTPAddr
	return c
}

// Load reads and parses the file at path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
// Durations use Go syntax, e.g. "10ms" or "30s".
func Parse(content []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(content, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks value ranges and the input wiring.
func (c *Config) Validate() error {
	if c.Buttons < 1 || c.Buttons > buttons.MaxButtons {
		return fmt.Errorf("%w: buttons must be between 1 and %d, got %d", ErrInvalid, buttons.MaxButtons, c.Buttons)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick must be positive", ErrInvalid)
	}
	if c.Debounce < c.Tick {
		return fmt.Errorf("%w: debounce %v is shorter than one tick", ErrInvalid, c.Debounce)
	}
	if c.StuckTimeout <= c.Debounce {
		return fmt.Errorf("%w: stuckTimeout %v must exceed debounce %v", ErrInvalid, c.StuckTimeout, c.Debounce)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: queueCapacity must be at least 1", ErrInvalid)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat must not be negative", ErrInvalid)
	}

	switch c.Input.Source {
	case SourceSim:
	case SourceGPIO:
		if c.Input.Chip == "" {
			return fmt.Errorf("%w: input.chip is missing", ErrInvalid)
		}
		if len(c.Input.Pins) != c.Buttons {
			return fmt.Errorf("%w: input.pins has %d entries for %d buttons", ErrInvalid, len(c.Input.Pins), c.Buttons)
		}
		seen := make(map[int]bool)
		for i, p := range c.Input.Pins {
			if p < 0 {
				return fmt.Errorf("%w: pin %d for button %d", ErrInvalid, p, i)
			}
			if seen[p] {
				return fmt.Errorf("%w: pin %d used twice", ErrInvalid, p)
			}
			seen[p] = true
		}
	default:
		return fmt.Errorf("%w: unknown input.source %q", ErrInvalid, c.Input.Source)
	}

	if c.MQTT.Broker == "" {
		return fmt.Errorf("%w: mqtt.broker is missing", ErrInvalid)
	}
	if c.MQTT.Topic == "" {
		return fmt.Errorf("%w: mqtt.topic is missing", ErrInvalid)
	}
	return nil
}

// Timing returns the state machine timing.
func (c *Config) Timing() buttons.Config {
	return buttons.Config{
		DebounceTime: c.Debounce,
		StuckTimeout: c.StuckTimeout,
		TickPeriod:   c.Tick,
	}
}
