//go:build linux

package input

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

// Lines samples button levels from GPIO lines through the Linux GPIO
// character device. Each read samples the line once.
type Lines struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	pins  []int
	vals  []int
	last  [MaxButtons]bool
}

// NewLines requests the given line offsets on chip as inputs, one per button.
// With activeLow a grounded line reads as pressed.
func NewLines(chip string, pins []int, activeLow bool) (*Lines, error) {
	if len(pins) == 0 || len(pins) > MaxButtons {
		return nil, fmt.Errorf("request %d lines: %w", len(pins), ErrIndex)
	}

	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithPullDown)
	}

	l, err := c.RequestLines(pins, opts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request pins %v: %w", pins, err)
	}

	return &Lines{
		chip:  c,
		lines: l,
		pins:  pins,
		vals:  make([]int, len(pins)),
	}, nil
}

// ReadNextInputBit samples the line for button i. A failed read is logged
// and the button's previous level is returned.
func (r *Lines) ReadNextInputBit(i int) bool {
	if i < 0 || i >= len(r.pins) {
		return false
	}
	if err := r.lines.Values(r.vals); err != nil {
		log.WithFields(log.Fields{"button": i, "pin": r.pins[i]}).Warnf("gpio: read failed: %v", err)
		return r.last[i]
	}
	r.last[i] = r.vals[i] != 0
	return r.last[i]
}

// Close releases the lines and the chip.
// The lines are reconfigured as plain pulled-down inputs first so the pins
// are left in their boot state.
func (r *Lines) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure lines: %w", err))
		}
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close lines: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
