package controlloop

import (
	"sync"
	"sync/atomic"

	"github.com/nerrad567/birdhouse-core/internal/watertemp"
	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// Inputs collects asynchronous events for the loop. Safe for concurrent use.
type Inputs struct {
	motion atomic.Bool

	mu      sync.Mutex
	reading *weather.Reading
	water   *watertemp.Reading

	wake chan struct{}
}

// NewInputs creates an empty Inputs.
func NewInputs() *Inputs {
	return &Inputs{wake: make(chan struct{}, 1)}
}

// SignalMotion marks a motion event for the next iteration and wakes the loop.
// Signals arriving before the loop consumes the flag collapse into one.
func (in *Inputs) SignalMotion() {
	in.motion.Store(true)
	in.poke()
}

// SetReading replaces the waiting sensor reading.
func (in *Inputs) SetReading(r weather.Reading) {
	in.mu.Lock()
	in.reading = &r
	in.mu.Unlock()
}

// SetWaterReading replaces the waiting water temperature reading.
func (in *Inputs) SetWaterReading(r watertemp.Reading) {
	in.mu.Lock()
	in.water = &r
	in.mu.Unlock()
}

// TakeMotion reports and clears the pending motion flag.
func (in *Inputs) TakeMotion() bool {
	return in.motion.Swap(false)
}

// TakeReading returns and clears the waiting reading.
func (in *Inputs) TakeReading() (weather.Reading, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.reading == nil {
		return weather.Reading{}, false
	}
	r := *in.reading
	in.reading = nil
	return r, true
}

// TakeWaterReading returns and clears the waiting water temperature reading.
func (in *Inputs) TakeWaterReading() (watertemp.Reading, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.water == nil {
		return watertemp.Reading{}, false
	}
	r := *in.water
	in.water = nil
	return r, true
}

// Wake fires after SignalMotion so the loop can react before its next tick.
func (in *Inputs) Wake() <-chan struct{} {
	return in.wake
}

func (in *Inputs) poke() {
	select {
	case in.wake <- struct{}{}:
	default:
	}
}
