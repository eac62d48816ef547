package gpio

import (
	"fmt"
	"sort"
	"sync"
)

// Write records one WriteState call on a FakeSwitch.
type Write struct {
	Pin int
	On  bool
}

// FakeSwitch is an in-memory Switch. It backs the "fake" driver and the
// scheduler tests.
type FakeSwitch struct {
	mu     sync.Mutex
	states map[int]bool
	writes []Write

	// ReadErrors and WriteErrors inject failures per pin.
	ReadErrors  map[int]error
	WriteErrors map[int]error

	closed bool
}

// NewFakeSwitch creates a FakeSwitch with the given pins, all off.
// Pins not listed are created on first write.
func NewFakeSwitch(pins ...int) *FakeSwitch {
	f := &FakeSwitch{
		states:      make(map[int]bool, len(pins)),
		ReadErrors:  make(map[int]error),
		WriteErrors: make(map[int]error),
	}
	for _, p := range pins {
		f.states[p] = false
	}
	return f
}

// ReadState returns the stored level for pin.
func (f *FakeSwitch) ReadState(pin int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ReadErrors[pin]; err != nil {
		return false, fmt.Errorf("%w: read pin %d: %w", ErrSwitch, pin, err)
	}
	on, ok := f.states[pin]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	return on, nil
}

// WriteState stores the level for pin and records the call.
func (f *FakeSwitch) WriteState(pin int, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.WriteErrors[pin]; err != nil {
		return fmt.Errorf("%w: write pin %d: %w", ErrSwitch, pin, err)
	}
	f.states[pin] = on
	f.writes = append(f.writes, Write{Pin: pin, On: on})
	return nil
}

// Close marks the switch closed.
func (f *FakeSwitch) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Set forces a level without recording a write, for test setup.
func (f *FakeSwitch) Set(pin int, on bool) {
	f.mu.Lock()
	f.states[pin] = on
	f.mu.Unlock()
}

// State returns the level for pin, false if unknown.
func (f *FakeSwitch) State(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[pin]
}

// Writes returns a copy of every recorded write, oldest first.
func (f *FakeSwitch) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Write, len(f.writes))
	copy(out, f.writes)
	return out
}

// ResetWrites clears the write log.
func (f *FakeSwitch) ResetWrites() {
	f.mu.Lock()
	f.writes = nil
	f.mu.Unlock()
}

// Pins returns the known pins in ascending order.
func (f *FakeSwitch) Pins() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	pins := make([]int, 0, len(f.states))
	for p := range f.states {
		pins = append(pins, p)
	}
	sort.Ints(pins)
	return pins
}

// Closed reports whether Close was called.
func (f *FakeSwitch) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
