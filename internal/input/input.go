// Package input provides the per-button digital input bit sources.
// The simulated source replays synthetic bit streams the way the desktop
// board does. The line source samples Linux GPIO character-device lines.
// The fake source replays scripted bits for tests.
package input

import (
	"errors"
	"strings"
)

// MaxButtons is the largest number of buttons a board can carry.
const MaxButtons = 8

// ErrIndex is returned for a button index outside the source's range.
var ErrIndex = errors.New("input: button index out of range")

// BitSource yields one input bit per read for each button.
type BitSource interface {
	// ReadNextInputBit consumes and returns the next bit for the button.
	// It is always defined: once a source has nothing new to say it keeps
	// returning the button's last known level.
	ReadNextInputBit(index int) bool
}

// ParseBits converts a string of '0' and '1' into bits. Any other rune
// (spaces, underscores) is ignored so long patterns can be grouped.
func ParseBits(s string) []bool {
	bits := make([]bool, 0, len(s))
	for _, r := range s {
		switch r {
		case '0':
			bits = append(bits, false)
		case '1':
			bits = append(bits, true)
		}
	}
	return bits
}

// FormatBits is the inverse of ParseBits.
func FormatBits(bits []bool) string {
	var b strings.Builder
	for _, v := range bits {
		if v {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
