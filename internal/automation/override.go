package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/outlet"
)

// OverrideController applies motion events to every outlet.
type OverrideController struct {
	store    Store
	sw       Switch
	listener StateListener
	logger   Logger
}

// NewOverrideController creates an OverrideController.
func NewOverrideController(store Store, sw Switch, logger Logger) *OverrideController {
	if logger == nil {
		logger = noopLogger{}
	}
	return &OverrideController{store: store, sw: sw, logger: logger}
}

// SetStateListener registers l to be told about every level the controller writes.
func (c *OverrideController) SetStateListener(l StateListener) {
	c.listener = l
}

// OnMotionDetected sets override_until = now + minutes on every outlet in one
// store write, then forces every outlet ON, including outlets whose schedule
// is inactive.
//
// Each call re-extends the window; consecutive motion events are not merged.
// A persistence failure of the override window is returned before any
// switch is touched. Switch failures are logged and listed in the result.
// Override events are recorded afterwards, only for entering outlets whose
// relay was actually driven on.
func (c *OverrideController) OnMotionDetected(ctx context.Context, now time.Time, minutes int) (OverrideResult, error) {
	if minutes <= 0 {
		return OverrideResult{}, fmt.Errorf("%w: %d", ErrInvalidOverrideDuration, minutes)
	}

	res := OverrideResult{Until: now.Add(time.Duration(minutes) * time.Minute)}

	entering, err := c.store.SetOverrideUntil(ctx, res.Until, now)
	if err != nil {
		return res, fmt.Errorf("applying motion override: %w", err)
	}
	res.Entering = entering

	outlets, err := c.store.List(ctx)
	if err != nil {
		return res, fmt.Errorf("listing outlets for override: %w", err)
	}

	isEntering := make(map[int]bool, len(entering))
	for _, id := range entering {
		isEntering[id] = true
	}

	var events []outlet.Event
	for _, o := range outlets {
		if err := c.sw.WriteState(o.ID, true); err != nil {
			if res.Failed == nil {
				res.Failed = make(map[int]error)
			}
			res.Failed[o.ID] = err
			c.logger.Error("forcing outlet on failed", "outlet_id", o.ID, "error", err)
			continue
		}
		res.Forced = append(res.Forced, o.ID)
		if c.listener != nil {
			c.listener.OutletStateChanged(o.ID, true, outlet.SourceMotion)
		}
		if isEntering[o.ID] {
			events = append(events, outlet.Event{
				OutletID:  o.ID,
				Action:    outlet.ActionOverride,
				State:     true,
				Source:    outlet.SourceMotion,
				CreatedAt: now,
			})
		}
	}

	if err := c.store.RecordEvents(ctx, events); err != nil {
		return res, fmt.Errorf("recording override events: %w", err)
	}

	if len(entering) > 0 {
		c.logger.Info("motion override started",
			"until", res.Until,
			"outlets", len(outlets),
		)
	} else {
		c.logger.Debug("motion override extended", "until", res.Until)
	}
	return res, nil
}
