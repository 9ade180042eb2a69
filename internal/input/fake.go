package input

// Fake is a test double that returns scripted bits per button.
type Fake struct {
	// Scripts holds the bits returned for each button, in order.
	// Each call to ReadNextInputBit consumes the next bit.
	Scripts [MaxButtons][]bool

	// index tracks the current position in each script
	index [MaxButtons]int

	// Reads counts calls per button.
	Reads [MaxButtons]int
}

// NewFake creates a Fake with empty scripts. Buttons without a script read 0.
func NewFake() *Fake {
	return &Fake{}
}

// Script replaces the bits for button i and rewinds it.
func (f *Fake) Script(i int, bits ...bool) {
	f.Scripts[i] = bits
	f.index[i] = 0
}

// ScriptString is Script with ParseBits notation.
func (f *Fake) ScriptString(i int, s string) {
	f.Script(i, ParseBits(s)...)
}

// ReadNextInputBit returns the next scripted bit for button i.
// If the script is exhausted, it returns the last bit repeatedly.
func (f *Fake) ReadNextInputBit(i int) bool {
	if i < 0 || i >= MaxButtons {
		return false
	}
	f.Reads[i]++

	script := f.Scripts[i]
	if len(script) == 0 {
		return false
	}

	bit := script[f.index[i]]
	if f.index[i] < len(script)-1 {
		f.index[i]++
	}
	return bit
}

// Reset rewinds every script and clears the read counters.
func (f *Fake) Reset() {
	f.index = [MaxButtons]int{}
	f.Reads = [MaxButtons]int{}
}
