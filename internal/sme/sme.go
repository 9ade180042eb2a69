// Package sme is a table-driven state machine executor.
//
// A machine is a set of states, each with entry, operate and exit behavior,
// and a transition table. Every call to Step advances one instance by exactly
// one phase: entry on a fresh activation, one operate step while the state
// wants to stay, exit once it wants to leave. After exit the table selects the
// next state and the row's transition action runs.
//
// The executor holds no per-instance data. Callers keep the instance context,
// its phase and its current state id, so one machine can run any number of
// independent instances.
package sme

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/evq"
)

// StateID identifies a state. None is the terminal "no state" value.
type StateID int

const None StateID = 0

// Phase is where an instance is within its current state.
type Phase int

const (
	PhaseUninit Phase = iota
	PhaseOperational
	PhaseExit
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseUninit:
		return "uninit"
	case PhaseOperational:
		return "operational"
	case PhaseExit:
		return "exit"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Reason qualifies why a state exited. Only the transition table reads it.
type Reason uint32

// Behavior is one state's implementation for instance context C.
type Behavior[C any] struct {
	Name string
	// Enter runs on a fresh activation.
	Enter func(c *C, ev evq.Event)
	// Operate runs once per step while the state is active. Returning true
	// ends the state; the exit behavior runs on the next step.
	Operate func(c *C, ev evq.Event) bool
	// Exit writes the outbound event and returns the exit reason.
	Exit func(c *C, ev *evq.Event) Reason
}

// Transition is run when a table row is taken.
type Transition func(ev evq.Event, reason Reason)

// Row is one transition table entry. A row matches when the current state
// and event id are equal and reason&ReasonMask == Reason&ReasonMask.
type Row struct {
	Current    StateID
	Event      evq.EventID
	ReasonMask Reason
	Reason     Reason
	Next       StateID
	Transition Transition
}

// Table is an ordered list of rows; the first match wins.
type Table []Row

// Match returns the first row for (cur, ev, reason).
func (t Table) Match(cur StateID, ev evq.EventID, reason Reason) (Row, bool) {
	for _, r := range t {
		if r.Current != cur || r.Event != ev {
			continue
		}
		if reason&r.ReasonMask == r.Reason&r.ReasonMask {
			return r, true
		}
	}
	return Row{}, false
}

// Machine executes a state table for instances of context C.
type Machine[C any] struct {
	states map[StateID]Behavior[C]
	table  Table

	unmatched int
}

// New builds a machine. The state map and table are copied and never
// modified afterwards.
func New[C any](states map[StateID]Behavior[C], table Table) *Machine[C] {
	m := &Machine[C]{
		states: make(map[StateID]Behavior[C], len(states)),
		table:  append(Table(nil), table...),
	}
	for id, b := range states {
		m.states[id] = b
	}
	return m
}

// Name returns the state's name, or a placeholder for unknown ids.
func (m *Machine[C]) Name(id StateID) string {
	if id == None {
		return "none"
	}
	if b, ok := m.states[id]; ok && b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("state(%d)", int(id))
}

// Unmatched returns how many exits found no transition row.
func (m *Machine[C]) Unmatched() int {
	return m.unmatched
}

// Step advances one instance by one phase and returns the state the instance
// is in afterwards together with its new phase.
//
// A nil context or phase is a no-op that returns (cur, PhaseUninit).
// An unknown state returns None. An exit with no matching row keeps the
// instance in cur with PhaseFinished, so cur is entered again on the next step.
func (m *Machine[C]) Step(c *C, phase *Phase, cur StateID, ev evq.Event) (StateID, Phase) {
	if c == nil || phase == nil {
		return cur, PhaseUninit
	}

	b, ok := m.states[cur]
	if !ok {
		log.WithField("state", int(cur)).Warn("sme: unknown state")
		return None, PhaseFinished
	}

	switch *phase {
	case PhaseOperational:
		if b.Operate != nil && b.Operate(c, ev) {
			*phase = PhaseExit
		}
		return cur, *phase

	case PhaseExit:
		out := ev
		var reason Reason
		if b.Exit != nil {
			reason = b.Exit(c, &out)
		}
		*phase = PhaseFinished

		row, ok := m.table.Match(cur, out.ID, reason)
		if !ok {
			m.unmatched++
			log.WithFields(log.Fields{
				"state":  m.Name(cur),
				"event":  out.ID,
				"data":   out.Data,
				"reason": reason,
			}).Warn("sme: no transition matched, re-entering state")
			return cur, PhaseFinished
		}
		if row.Transition != nil {
			row.Transition(out, reason)
		}
		return row.Next, PhaseFinished

	default:
		// Uninit, Finished, or a corrupted value: (re)start the state.
		*phase = PhaseOperational
		if b.Enter != nil {
			b.Enter(c, ev)
		}
		return cur, PhaseOperational
	}
}
