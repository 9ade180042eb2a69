//go:build !linux

package input

import "errors"

// Lines is not available on non-Linux platforms.
type Lines struct{}

// NewLines returns an error on non-Linux platforms.
func NewLines(chip string, pins []int, activeLow bool) (*Lines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadNextInputBit always reads 0 on non-Linux platforms.
func (r *Lines) ReadNextInputBit(i int) bool {
	return false
}

// Close is a no-op on non-Linux platforms.
func (r *Lines) Close() error {
	return nil
}
