package buttons

import (
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/evq"
	"github.com/sweeney/button-sensor/internal/sme"
)

// states returns the behavior of every state. The two debounce states share
// one behavior; it only ever looks at the button it is given.
func (t *Task) states() map[sme.StateID]sme.Behavior[Button] {
	debounce := sme.Behavior[Button]{
		Name:    "debounce",
		Enter:   t.enterDebounce,
		Operate: t.operateDebounce,
		Exit:    exitWithSavedEvent,
	}

	return map[sme.StateID]sme.Behavior[Button]{
		StateStart: {
			Name:  StateName(StateStart),
			Enter: saveEvent,
			// leave as soon as we start
			Operate: func(*Button, evq.Event) bool { return true },
			Exit: func(b *Button, ev *evq.Event) sme.Reason {
				ev.ID = b.event
				ev.Data = b.index
				return ReasonNone
			},
		},
		StateReleased: {
			Name:    StateName(StateReleased),
			Operate: t.operateReleased,
			// the inbound event id is kept
			Exit: func(b *Button, ev *evq.Event) sme.Reason {
				ev.Data = b.index
				return ReasonTwitchNoted
			},
		},
		StateDebouncePress:   debounce,
		StatePressed:         {Name: StateName(StatePressed), Enter: t.enterPressed, Operate: t.operatePressed, Exit: exitWithSavedEvent},
		StateDebounceRelease: debounce,
		StateStuck: {
			Name:    StateName(StateStuck),
			Enter:   saveEvent,
			Operate: t.operateStuck,
			Exit: func(b *Button, ev *evq.Event) sme.Reason {
				ev.ID = b.event
				ev.Data = b.index
				return ReasonButtonUnstuck
			},
		},
	}
}

func saveEvent(b *Button, ev evq.Event) {
	b.event = ev.ID
}

func exitWithSavedEvent(b *Button, ev *evq.Event) sme.Reason {
	ev.ID = b.event
	ev.Data = b.index
	return b.reason
}

// operateReleased waits for the first 1 bit.
func (t *Task) operateReleased(b *Button, _ evq.Event) bool {
	return t.src.ReadNextInputBit(b.index)
}

// enterDebounce assumes the state was entered because of a 1 bit and seeds
// the accumulator with it. A press is then recognized after seven more 1
// bits, a release after eight 0 bits.
func (t *Task) enterDebounce(b *Button, ev evq.Event) {
	b.event = ev.ID
	b.reason = ReasonNone
	b.bits = 1
	b.debounce.Set(t.clk, t.cfg.DebounceTime)
}

func (t *Task) operateDebounce(b *Button, _ evq.Event) bool {
	b.bits <<= 1
	if t.src.ReadNextInputBit(b.index) {
		b.bits |= 1
	}

	switch {
	case b.bits == debouncedReleased:
		b.event = EvReleased
		b.reason = ReasonDebounced
	case b.bits == debouncedPressed:
		b.event = EvPressed
		b.reason = ReasonDebounced
	case b.debounce.Expired(t.clk):
		b.reason = ReasonTimeout
		log.WithFields(log.Fields{
			"button": b.index,
			"bits":   b.bits,
		}).Debug("buttons: debounce timed out")
	default:
		return false
	}
	return true
}

// enterPressed arms the stuck timer. The button stays pressed until a 0 bit
// is read or the timer runs out.
func (t *Task) enterPressed(b *Button, ev evq.Event) {
	b.event = ev.ID
	b.reason = ReasonNone
	b.stuck.Set(t.clk, t.cfg.StuckTimeout)
}

func (t *Task) operatePressed(b *Button, _ evq.Event) bool {
	switch {
	case !t.src.ReadNextInputBit(b.index):
		// possibly released; debounce-release confirms it
		b.reason = ReasonTwitchNoted
	case b.stuck.Expired(t.clk):
		b.reason = ReasonTimeout
	default:
		return false
	}
	return true
}

func (t *Task) operateStuck(b *Button, _ evq.Event) bool {
	return !t.src.ReadNextInputBit(b.index)
}
