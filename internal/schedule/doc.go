// Package schedule evaluates five-field cron expressions against wall-clock
// time for outlet scheduling.
//
// Expressions use the standard cron grammar: minute, hour, day-of-month,
// month and day-of-week, each a wildcard, literal, comma list, range or step.
// Month and weekday names and the @yearly/@monthly/@weekly/@daily/@hourly
// descriptors are accepted. When both day fields are restricted they combine
// with OR; when either is a wildcard they combine with AND.
//
// Matching is done at minute resolution in the Matcher's time zone unless the
// expression carries its own CRON_TZ= prefix.
//
// # Usage
//
//	m := schedule.NewMatcher(loc)
//	ok, err := m.Matches("0 20 * * *", time.Now())
//	if errors.Is(err, schedule.ErrScheduleParse) {
//	    // skip this outlet for the cycle
//	}
package schedule
