package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/outlet"
)

// Engine runs the per-cycle outlet scheduler.
type Engine struct {
	store    Store
	sw       Switch
	matcher  Matcher
	debounce time.Duration
	listener StateListener
	logger   Logger

	// invalid remembers schedules already reported as unparseable so a bad
	// expression logs one error, not one per cycle.
	invalid map[invalidSchedule]struct{}
}

type invalidSchedule struct {
	id   int
	expr string
}

// NewEngine creates a scheduler engine.
//
// Parameters:
//   - store: Outlet persistence (single source of truth across restarts)
//   - sw: Physical switch sink
//   - matcher: Cron matcher, already bound to the site time zone
//   - debounce: Minimum time between toggles of one outlet (<= 0 means DefaultDebounce)
//   - logger: Logger instance (may be nil)
func NewEngine(store Store, sw Switch, matcher Matcher, debounce time.Duration, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Engine{
		store:    store,
		sw:       sw,
		matcher:  matcher,
		debounce: debounce,
		logger:   logger,
		invalid:  make(map[invalidSchedule]struct{}),
	}
}

// SetStateListener registers l to be told about every level the engine writes.
func (e *Engine) SetStateListener(l StateListener) {
	e.listener = l
}

// Debounce returns the configured debounce window.
func (e *Engine) Debounce() time.Duration {
	return e.debounce
}

// Start writes every outlet's initial state to the switch, regardless of
// schedule_active, and records the baseline in the outlet history.
//
// Must be called once before the first RunCycle. Switch failures are logged
// per outlet and do not stop the remaining outlets. Returns a persistence
// error if the outlets cannot be listed or the history cannot be written.
func (e *Engine) Start(ctx context.Context, now time.Time) error {
	outlets, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing outlets for start-up: %w", err)
	}

	events := make([]outlet.Event, 0, len(outlets))
	for _, o := range outlets {
		if err := e.sw.WriteState(o.ID, o.InitialState); err != nil {
			e.logger.Error("writing initial state failed",
				"outlet_id", o.ID,
				"state", o.InitialState,
				"error", err,
			)
			continue
		}
		events = append(events, outlet.Event{
			OutletID:  o.ID,
			Action:    outlet.ActionStartup,
			State:     o.InitialState,
			Source:    outlet.SourceStartup,
			CreatedAt: now,
		})
		e.notify(o.ID, o.InitialState, outlet.SourceStartup)
	}

	if err := e.store.RecordEvents(ctx, events); err != nil {
		return fmt.Errorf("recording start-up states: %w", err)
	}

	e.logger.Info("outlets initialised", "count", len(events), "failed", len(outlets)-len(events))
	return nil
}

// RunCycle evaluates every outlet once against now and toggles the ones whose
// schedule fires.
//
// The outlet rows are read once, up front. For a Triggered outlet the engine
// reads the current level, persists last_ran, writes the negated level and,
// only if the write succeeded, records the toggle event.
//
// Returns:
//   - CycleReport: one Decision per outlet evaluated so far
//   - error: a persistence failure; the cycle stops at the failing outlet
func (e *Engine) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	report := CycleReport{At: now}

	outlets, err := e.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("listing outlets: %w", err)
	}
	report.Decisions = make([]Decision, 0, len(outlets))

	for _, o := range outlets {
		d := Evaluate(o, now, e.debounce, e.matcher)

		switch d.State {
		case StateInvalid:
			e.reportInvalid(o, now, d.Err)
		case StateTriggered:
			if err := e.toggle(ctx, o, now, &d); err != nil {
				report.Decisions = append(report.Decisions, d)
				return report, err
			}
		}

		report.Decisions = append(report.Decisions, d)
	}

	return report, nil
}

// toggle applies a Triggered decision. Only persistence failures are returned.
func (e *Engine) toggle(ctx context.Context, o outlet.Outlet, now time.Time, d *Decision) error {
	current, err := e.sw.ReadState(o.ID)
	if err != nil {
		d.Err = err
		e.logger.Error("reading outlet state failed", "outlet_id", o.ID, "error", err)
		return nil
	}
	next := !current

	if err := e.store.SetLastRan(ctx, o.ID, now); err != nil {
		d.Err = err
		if errors.Is(err, outlet.ErrPersistence) {
			return fmt.Errorf("outlet %d: %w", o.ID, err)
		}
		// Outlet removed since List, or clock stepped backwards.
		e.logger.Warn("not toggling outlet", "outlet_id", o.ID, "at", now, "error", err)
		return nil
	}

	if err := e.sw.WriteState(o.ID, next); err != nil {
		d.Err = err
		e.logger.Error("writing outlet state failed",
			"outlet_id", o.ID,
			"state", next,
			"error", err,
		)
		return nil
	}

	d.Toggled = true
	d.NewState = next
	e.notify(o.ID, next, outlet.SourceSchedule)

	if err := e.store.RecordEvents(ctx, []outlet.Event{{
		OutletID:  o.ID,
		Action:    outlet.ActionToggle,
		State:     next,
		Source:    outlet.SourceSchedule,
		CreatedAt: now,
	}}); err != nil {
		d.Err = err
		return fmt.Errorf("outlet %d: %w", o.ID, err)
	}

	e.logger.Info("outlet toggled by schedule",
		"outlet_id", o.ID,
		"schedule", o.Schedule,
		"state", next,
		"at", now,
	)
	return nil
}

// reportInvalid logs an unparseable schedule at Error the first time it is
// seen for an outlet and at Debug afterwards.
func (e *Engine) reportInvalid(o outlet.Outlet, now time.Time, err error) {
	key := invalidSchedule{id: o.ID, expr: o.Schedule}
	log := e.logger.Debug
	if _, seen := e.invalid[key]; !seen {
		e.invalid[key] = struct{}{}
		log = e.logger.Error
	}
	log("skipping outlet with invalid schedule",
		"outlet_id", o.ID,
		"schedule", o.Schedule,
		"at", now,
		"error", err,
	)
}

func (e *Engine) notify(id int, on bool, source string) {
	if e.listener != nil {
		e.listener.OutletStateChanged(id, on, source)
	}
}
