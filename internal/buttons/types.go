// Package buttons implements the per-button debounce state machine and the
// task that steps every button once per scheduler tick.
//
// The package has no I/O of its own. Input bits come from an input.BitSource,
// time from a clock.Clock, and notifications leave through an evq.Poster.
package buttons

import (
	"fmt"
	"time"

	"github.com/sweeney/button-sensor/internal/clock"
	"github.com/sweeney/button-sensor/internal/evq"
	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/sme"
)

// MaxButtons is the largest number of buttons a task can drive.
const MaxButtons = input.MaxButtons

// Event ids used by the button state machine.
const (
	EvButtonTask evq.EventID = iota + 1 // scheduler tick that drives the task
	EvPressed
	EvReleased
	EvStuck
	EvUnstuck
)

// EventName returns the published name of a button event id.
func EventName(id evq.EventID) string {
	switch id {
	case EvButtonTask:
		return "TICK"
	case EvPressed:
		return "PRESSED"
	case EvReleased:
		return "RELEASED"
	case EvStuck:
		return "STUCK"
	case EvUnstuck:
		return "UNSTUCK"
	default:
		return fmt.Sprintf("EVENT_%d", id)
	}
}

// Button state machine states.
const (
	StateStart sme.StateID = iota + 1
	StateReleased
	StateDebouncePress
	StatePressed
	StateDebounceRelease
	StateStuck
)

// StateName returns a state's name for logs and status output.
func StateName(id sme.StateID) string {
	switch id {
	case sme.None:
		return "none"
	case StateStart:
		return "start"
	case StateReleased:
		return "released"
	case StateDebouncePress:
		return "debounce-press"
	case StatePressed:
		return "pressed"
	case StateDebounceRelease:
		return "debounce-release"
	case StateStuck:
		return "stuck"
	default:
		return fmt.Sprintf("state(%d)", int(id))
	}
}

// Exit reasons.
const (
	ReasonNone sme.Reason = iota
	ReasonTwitchNoted
	ReasonDebounced
	ReasonTimeout
	ReasonButtonUnstuck
)

// reasonMask compares reason codes exactly.
const reasonMask sme.Reason = 0xFF

// Accumulator values that end a debounce.
const (
	debouncedReleased uint8 = 0x00
	debouncedPressed  uint8 = 0xFF
)

// Config holds the timing of the state machine.
type Config struct {
	// DebounceTime bounds a debounce attempt. It has to be long enough to
	// read through the noise of a worst case input and short enough to stay
	// responsive.
	DebounceTime time.Duration
	// StuckTimeout is how long a button may stay pressed before it is
	// reported stuck.
	StuckTimeout time.Duration
	// TickPeriod is the interval of the re-trigger alarm.
	TickPeriod time.Duration
}

// DefaultConfig returns 60 samples of debounce at a 10ms tick and a 30s
// stuck timeout.
func DefaultConfig() Config {
	return Config{
		DebounceTime: 600 * time.Millisecond,
		StuckTimeout: 30 * time.Second,
		TickPeriod:   10 * time.Millisecond,
	}
}

// Button is the complete state of one button's machine.
type Button struct {
	index int
	state sme.StateID
	phase sme.Phase

	// event is the event id written on exit.
	event evq.EventID
	// reason is the exit reason written on exit.
	reason sme.Reason
	// bits is the debounce shift register.
	bits uint8

	debounce clock.Timer
	stuck    clock.Timer
}

// Index returns the button's index.
func (b *Button) Index() int { return b.index }

// State returns the button's persisted state id.
func (b *Button) State() sme.StateID { return b.state }

// Phase returns the button's phase within its state.
func (b *Button) Phase() sme.Phase { return b.phase }

// Bits returns the debounce accumulator.
func (b *Button) Bits() uint8 { return b.bits }
