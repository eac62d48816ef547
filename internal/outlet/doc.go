// Package outlet persists outlet definitions and their scheduler runtime
// state.
//
// An outlet is a switched power channel (heat lamp, feeder) addressed by its
// GPIO pin number, which doubles as its ID. Besides the definition (name,
// cron schedule, initial state, schedule flag) each row carries two mutable
// timestamps:
//
//   - override_until: set for every outlet at once when motion is detected
//   - last_ran: set by the scheduler for the toggle it is about to issue
//
// Every mutation is written in a single transaction together with the
// outlet_events rows that describe it, so the history table never disagrees
// with the outlet rows after a crash.
//
// # Usage
//
//	repo := outlet.NewSQLiteRepository(db.DB)
//	outlets, err := repo.List(ctx)
//	if errors.Is(err, outlet.ErrPersistence) {
//	    // store unavailable, retry next cycle
//	}
package outlet
