package input

import (
	"fmt"
	"sync"
)

// Synthetic input patterns, read least significant bit first.
const (
	// CleanPressPattern is queued on every simulated press: one bounce and
	// then a solid run of nine 1 bits.
	CleanPressPattern uint64 = 0xFF9
	// CleanReleasePattern is queued on every simulated release.
	CleanReleasePattern uint64 = ^CleanPressPattern & 0xFFF
	// CleanPatternWidth is the width of the clean patterns in bits.
	CleanPatternWidth = 12

	// NoisyPressPattern is 64 bits of noise whose longest run of 1 bits
	// sits at the end.
	NoisyPressPattern uint64 = 0xFF7F7EFBDDA03F01
	// NoisyReleasePattern is noise that never holds eight 1 bits in a row.
	NoisyReleasePattern uint64 = 0x100101020844A
)

// Sim is the simulated board input. Each button has a queue of synthetic
// bits and a status bit holding its last known level; reads consume the
// queue and fall back to the status bit once it is empty.
// Safe for concurrent use: presses arrive from the HTTP server while the
// run loop reads.
type Sim struct {
	mu      sync.Mutex
	n       int
	stream  [MaxButtons]uint64
	pending [MaxButtons]int
	status  uint32
}

// NewSim creates a simulated board with n buttons, all released.
func NewSim(n int) (*Sim, error) {
	if n <= 0 || n > MaxButtons {
		return nil, fmt.Errorf("sim: %d buttons: %w", n, ErrIndex)
	}
	return &Sim{n: n}, nil
}

// Buttons returns the number of simulated buttons.
func (s *Sim) Buttons() int {
	return s.n
}

// Press queues the clean press pattern for button i and marks it pressed.
func (s *Sim) Press(i int) error {
	return s.set(i, true, CleanPressPattern, CleanPatternWidth)
}

// Release queues the clean release pattern for button i and marks it released.
func (s *Sim) Release(i int) error {
	return s.set(i, false, CleanReleasePattern, CleanPatternWidth)
}

// PressNoisy queues 64 bits of press noise for button i and marks it
// pressed. The press only settles once the noise is consumed.
func (s *Sim) PressNoisy(i int) error {
	return s.set(i, true, NoisyPressPattern, 64)
}

// ReleaseNoisy queues release noise for button i and marks it released.
func (s *Sim) ReleaseNoisy(i int) error {
	return s.set(i, false, NoisyReleasePattern, 64)
}

func (s *Sim) set(i int, pressed bool, pattern uint64, width int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(i); err != nil {
		return err
	}
	s.queue(i, pattern, width)
	if pressed {
		s.status |= 1 << uint(i)
	} else {
		s.status &^= 1 << uint(i)
	}
	return nil
}

// Load queues width bits of pattern for button i without changing its status.
func (s *Sim) Load(i int, pattern uint64, width int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(i); err != nil {
		return err
	}
	if width < 0 || width > 64 {
		return fmt.Errorf("sim: pattern width %d out of range", width)
	}
	s.queue(i, pattern, width)
	return nil
}

// Pressed reports the status bit of button i.
func (s *Sim) Pressed(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return i >= 0 && i < s.n && s.status&(1<<uint(i)) != 0
}

// Status returns the status bitmap, one bit per button.
func (s *Sim) Status() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Pending returns the number of queued bits for button i.
func (s *Sim) Pending(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= s.n {
		return 0
	}
	return s.pending[i]
}

// ReadNextInputBit consumes the next queued bit for button i. With nothing
// queued it returns the button's status bit. Out-of-range buttons read 0.
func (s *Sim) ReadNextInputBit(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= s.n {
		return false
	}
	if s.pending[i] == 0 {
		return s.status&(1<<uint(i)) != 0
	}
	bit := s.stream[i]&1 != 0
	s.stream[i] >>= 1
	s.pending[i]--
	return bit
}

func (s *Sim) check(i int) error {
	if i < 0 || i >= s.n {
		return fmt.Errorf("sim: button %d: %w", i, ErrIndex)
	}
	return nil
}

// queue appends width bits behind the bits already pending. Bits that do
// not fit in the 64-bit stream are discarded.
func (s *Sim) queue(i int, pattern uint64, width int) {
	room := 64 - s.pending[i]
	if width > room {
		width = room
	}
	if width <= 0 {
		return
	}
	if width < 64 {
		pattern &= (1 << uint(width)) - 1
	}
	s.stream[i] |= pattern << uint(s.pending[i])
	s.pending[i] += width
}
