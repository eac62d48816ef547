package automation

import "time"

// State is the scheduler's view of one outlet for one cycle.
type State string

// Scheduler states, in evaluation priority order.
const (
	StateDisabled     State = "disabled"
	StateOverridden   State = "overridden"
	StateInvalid      State = "invalid"
	StateNotTriggered State = "not_triggered"
	StateDebounced    State = "debounced"
	StateTriggered    State = "triggered"
)

// AllStates lists every State, for metrics label pre-registration.
var AllStates = []State{
	StateDisabled,
	StateOverridden,
	StateInvalid,
	StateNotTriggered,
	StateDebounced,
	StateTriggered,
}

// DefaultDebounce is the minimum time between two scheduler toggles of one outlet.
const DefaultDebounce = 60 * time.Second

// Decision is the outcome of evaluating one outlet.
type Decision struct {
	OutletID int
	State    State

	// Err is set for StateInvalid (schedule parse error) and for a Triggered
	// outlet whose switch read, store write or switch write failed.
	Err error

	// Toggled is true when the physical level was changed to NewState.
	Toggled  bool
	NewState bool
}

// CycleReport summarises one scheduler cycle.
type CycleReport struct {
	At        time.Time
	Decisions []Decision
}

// Count returns the number of decisions in state s.
func (r CycleReport) Count(s State) int {
	n := 0
	for _, d := range r.Decisions {
		if d.State == s {
			n++
		}
	}
	return n
}

// Toggles returns the decisions that changed a physical level.
func (r CycleReport) Toggles() []Decision {
	var out []Decision
	for _, d := range r.Decisions {
		if d.Toggled {
			out = append(out, d)
		}
	}
	return out
}

// Decision returns the decision for outletID, if any.
func (r CycleReport) Decision(outletID int) (Decision, bool) {
	for _, d := range r.Decisions {
		if d.OutletID == outletID {
			return d, true
		}
	}
	return Decision{}, false
}

// OverrideResult describes one applied motion override.
type OverrideResult struct {
	Until time.Time

	// Entering lists outlets that were not overridden before this event.
	Entering []int

	// Forced lists outlets driven ON; Failed maps outlets whose switch write failed.
	Forced []int
	Failed map[int]error
}
