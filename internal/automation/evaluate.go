package automation

import (
	"time"

	"github.com/nerrad567/birdhouse-core/internal/outlet"
)

// Evaluate computes the scheduler state of o at now.
//
// It has no side effects. A debounce of zero or less uses DefaultDebounce.
// The toggle is allowed only when strictly more than debounce has elapsed
// since LastRan; an unset LastRan always satisfies the debounce.
func Evaluate(o outlet.Outlet, now time.Time, debounce time.Duration, m Matcher) Decision {
	d := Decision{OutletID: o.ID}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	switch {
	case !o.ScheduleActive:
		d.State = StateDisabled
		return d
	case o.Overridden(now):
		d.State = StateOverridden
		return d
	}

	match, err := m.Matches(o.Schedule, now)
	if err != nil {
		d.State = StateInvalid
		d.Err = err
		return d
	}
	if !match {
		d.State = StateNotTriggered
		return d
	}

	if o.LastRan != nil && now.Sub(*o.LastRan) <= debounce {
		d.State = StateDebounced
		return d
	}

	d.State = StateTriggered
	return d
}
