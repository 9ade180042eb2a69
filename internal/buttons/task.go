package buttons

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/clock"
	"github.com/sweeney/button-sensor/internal/evq"
	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/sme"
)

// Task drives every button's state machine once per tick.
//
// A Task is not safe for concurrent use. It is meant to be driven from a
// single run loop; the alarm it owns may be enabled from other goroutines.
type Task struct {
	buttons [MaxButtons]Button
	n       int

	machine *sme.Machine[Button]
	src     input.BitSource
	clk     clock.Clock
	cfg     Config
	alarm   *clock.Alarm
	queue   evq.Poster

	posted  map[evq.EventID]int
	dropped int
}

// NewTask creates a task for n buttons reading from src. Every button starts
// in the start state. The re-trigger alarm fires on its first poll and then
// every cfg.TickPeriod; it posts nothing until SetEventQueue is called.
func NewTask(n int, src input.BitSource, clk clock.Clock, cfg Config) (*Task, error) {
	if n <= 0 || n > MaxButtons {
		return nil, fmt.Errorf("create task for %d buttons: %w", n, input.ErrIndex)
	}
	if src == nil {
		return nil, fmt.Errorf("create task: no input source")
	}
	if cfg.TickPeriod <= 0 {
		return nil, fmt.Errorf("create task: tick period %v must be positive", cfg.TickPeriod)
	}

	t := &Task{
		n:      n,
		src:    src,
		clk:    clk,
		cfg:    cfg,
		alarm:  clock.NewAlarm(0, cfg.TickPeriod),
		posted: make(map[evq.EventID]int),
	}
	for i := 0; i < n; i++ {
		t.buttons[i] = Button{index: i, state: StateStart}
	}
	t.machine = sme.New(t.states(), t.table())
	return t, nil
}

// SetEventQueue wires the alarm to post id into q and makes q the
// destination for button notifications. Call it before the first tick.
func (t *Task) SetEventQueue(id evq.EventID, q evq.Poster) {
	t.alarm.SetTarget(q, id)
	t.queue = q
}

// OnButtonTick steps every button once, highest index first. It has the
// evq.Handler signature so it can be registered for the tick event.
//
// A button whose machine reports no state disables the alarm. The other
// buttons still finish this tick, and the broken one restarts at the start
// state on the first tick after the alarm is enabled again.
func (t *Task) OnButtonTick(ev evq.Event, _ uint32) {
	var lost []int
	for i := t.n - 1; i >= 0; i-- {
		b := &t.buttons[i]
		if b.state == sme.None {
			b.state = StateStart
			b.phase = sme.PhaseUninit
		}

		ev.Data = i
		prev := b.state
		next, phase := t.machine.Step(b, &b.phase, b.state, ev)
		b.state, b.phase = next, phase

		if next != prev {
			log.WithFields(log.Fields{
				"button": i,
				"from":   StateName(prev),
				"to":     StateName(next),
			}).Debug("buttons: state change")
		}
		if next == sme.None {
			lost = append(lost, i)
		}
	}

	if len(lost) > 0 {
		t.alarm.Disable()
		log.WithField("buttons", lost).Warn("buttons: lost state, alarm disabled")
	}
}

// Buttons returns the number of buttons.
func (t *Task) Buttons() int { return t.n }

// Button returns a copy of button i.
func (t *Task) Button(i int) (Button, error) {
	if i < 0 || i >= t.n {
		return Button{}, fmt.Errorf("button %d: %w", i, input.ErrIndex)
	}
	return t.buttons[i], nil
}

// Alarm returns the task's re-trigger alarm.
func (t *Task) Alarm() *clock.Alarm { return t.alarm }

// Posted returns how many events of kind id were queued.
func (t *Task) Posted(id evq.EventID) int { return t.posted[id] }

// Dropped returns how many notifications were lost to a full or missing queue.
func (t *Task) Dropped() int { return t.dropped }

// Unmatched returns how many state exits found no transition.
func (t *Task) Unmatched() int { return t.machine.Unmatched() }

// ButtonStatus is a point-in-time view of one button.
type ButtonStatus struct {
	Index int    `json:"index"`
	State string `json:"state"`
	Phase string `json:"phase"`
	Bits  uint8  `json:"bits"`
}

// Snapshot returns the status of every button, lowest index first.
func (t *Task) Snapshot() []ButtonStatus {
	out := make([]ButtonStatus, t.n)
	for i := 0; i < t.n; i++ {
		b := &t.buttons[i]
		out[i] = ButtonStatus{
			Index: i,
			State: StateName(b.state),
			Phase: b.phase.String(),
			Bits:  b.bits,
		}
	}
	return out
}
