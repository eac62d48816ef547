// Package automation decides, once per control cycle, the state of every
// outlet and applies motion overrides.
//
// The scheduler derives a tagged State for each outlet from its stored
// fields and the current time, in strict priority order:
//
//	Disabled      schedule_active is false
//	Overridden    override_until is after now
//	Invalid       the cron expression does not parse
//	NotTriggered  the cron expression does not match this minute
//	Debounced     it matches, but the last toggle was at most the debounce
//	              window ago
//	Triggered     it matches and the debounce window has elapsed
//
// Only Triggered has side effects: the engine reads the current GPIO level,
// persists last_ran together with the toggle event, then writes the negated
// level. Persisting first means a crash between the two steps cannot cause a
// second toggle during the same matching minute.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────┐
//	│                 Engine (engine.go)                   │
//	│  Start: write initial_state to every outlet          │
//	│  RunCycle:                                           │
//	│    1. List outlets (one snapshot)                    │
//	│    2. Evaluate each outlet (evaluate.go, pure)       │
//	│    3. Triggered: read pin, SetLastRan, write !pin,   │
//	│       then record the toggle event                   │
//	├──────────────────────────────────────────────────────┤
//	│           OverrideController (override.go)           │
//	│    1. SetOverrideUntil on all outlets (one tx)       │
//	│    2. Force every outlet ON                          │
//	│    3. Record override events for driven outlets      │
//	└──────────────────────────────────────────────────────┘
//
// # Error Handling
//
// A bad cron expression is reported and that outlet is skipped. Switch
// failures are reported per outlet. Persistence failures abort the operation
// and are returned; the caller decides whether to keep cycling.
//
// # Thread Safety
//
// Engine and OverrideController are meant to be driven from one goroutine
// (the control loop). They hold no mutable state of their own.
package automation
