package outlet

import "time"

// Outlet is one switched physical device.
type Outlet struct {
	// ID is the BCM GPIO pin driving the outlet's relay.
	ID   int    `json:"id"`
	Name string `json:"name"`

	// Schedule is a five-field cron expression. Ignored when ScheduleActive is false.
	Schedule string `json:"schedule"`

	// OverrideUntil holds the end of the current motion override, if any.
	// A value at or before now means no override.
	OverrideUntil *time.Time `json:"override_until,omitempty"`

	// LastRan is when the scheduler last toggled the outlet.
	LastRan *time.Time `json:"last_ran,omitempty"`

	InitialState   bool `json:"initial_state"`
	ScheduleActive bool `json:"schedule_active"`
}

// Overridden reports whether a motion override is in force at now.
func (o *Outlet) Overridden(now time.Time) bool {
	return o.OverrideUntil != nil && o.OverrideUntil.After(now)
}

// Action classifies an outlet event.
type Action string

// Event actions.
const (
	ActionStartup  Action = "startup"
	ActionToggle   Action = "toggle"
	ActionOverride Action = "override"
)

// Event sources.
const (
	SourceStartup  = "startup"
	SourceSchedule = "schedule"
	SourceMotion   = "motion"
)

// Event records a change of an outlet's physical state. Events are written
// only after the relay write succeeded.
type Event struct {
	ID        string    `json:"id"`
	OutletID  int       `json:"outlet_id"`
	Action    Action    `json:"action"`
	State     bool      `json:"state"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
