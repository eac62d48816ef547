package schedule

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts the classic five fields plus @descriptors. Seconds are not
// part of the grammar; matching happens on whole minutes.
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var errEveryUnsupported = errors.New("@every is an interval, not a calendar schedule")

// Matcher decides whether a cron expression fires at a given minute.
//
// Parsed expressions are cached, so repeated evaluation of the same outlet
// schedule costs one map lookup. A Matcher is safe for concurrent use.
type Matcher struct {
	loc *time.Location

	mu    sync.RWMutex
	cache map[string]*cron.SpecSchedule
}

// NewMatcher creates a Matcher that evaluates expressions in loc.
// A nil loc means time.Local.
func NewMatcher(loc *time.Location) *Matcher {
	if loc == nil {
		loc = time.Local
	}
	return &Matcher{
		loc:   loc,
		cache: make(map[string]*cron.SpecSchedule),
	}
}

// Location returns the time zone expressions are evaluated in.
func (m *Matcher) Location() *time.Location {
	return m.loc
}

// Matches reports whether expr fires during the minute containing t.
//
// Seconds and sub-second precision in t are ignored. The result depends only
// on expr, t and the Matcher's location.
func (m *Matcher) Matches(expr string, t time.Time) (bool, error) {
	sched, err := m.parse(expr)
	if err != nil {
		return false, err
	}
	return matches(sched, t), nil
}

// Validate parses expr without evaluating it.
func (m *Matcher) Validate(expr string) error {
	_, err := m.parse(expr)
	return err
}

// Next returns the first minute after t at which expr fires, or the zero time
// when the expression can never fire (for example 30 February).
func (m *Matcher) Next(expr string, t time.Time) (time.Time, error) {
	sched, err := m.parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t), nil
}

func (m *Matcher) parse(expr string) (*cron.SpecSchedule, error) {
	m.mu.RLock()
	sched, ok := m.cache[expr]
	m.mu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := parse(expr, m.loc)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[expr] = sched
	m.mu.Unlock()
	return sched, nil
}

// Matches is a convenience wrapper evaluating expr in time.Local without caching.
func Matches(expr string, t time.Time) (bool, error) {
	sched, err := parse(expr, time.Local)
	if err != nil {
		return false, err
	}
	return matches(sched, t), nil
}

func parse(expr string, loc *time.Location) (*cron.SpecSchedule, error) {
	s, err := parser.Parse(sundayAsZero(strings.TrimSpace(expr)))
	if err != nil {
		return nil, &ScheduleParseError{Expression: expr, Err: err}
	}

	fields, ok := s.(*cron.SpecSchedule)
	if !ok {
		return nil, &ScheduleParseError{Expression: expr, Err: errEveryUnsupported}
	}

	if !hasZonePrefix(expr) {
		// The parser defaults to time.Local; rebind to the configured zone.
		zoned := *fields
		zoned.Location = loc
		fields = &zoned
	}
	return fields, nil
}

// sundayAsZero rewrites a numeric day-of-week of 7 to 0, since the parser
// only knows 0-6. A range ending in 7 is expanded into a list:
// "5-7" becomes "5,6,0" and "1-7/3" becomes "1,4,0".
func sundayAsZero(expr string) string {
	fields := strings.Fields(expr)
	first := 0
	if len(fields) > 0 && hasZonePrefix(fields[0]) {
		first = 1
	}
	if len(fields)-first != 5 {
		return expr
	}

	dow := fields[first+4]
	parts := strings.Split(dow, ",")
	for i, p := range parts {
		parts[i] = sundayAsZeroPart(p)
	}
	if norm := strings.Join(parts, ","); norm != dow {
		fields[first+4] = norm
		return strings.Join(fields, " ")
	}
	return expr
}

func sundayAsZeroPart(p string) string {
	rng, stepStr, hasStep := strings.Cut(p, "/")
	lo, hi, isRange := strings.Cut(rng, "-")
	if !isRange {
		if rng == "7" && !hasStep {
			return "0"
		}
		return p
	}
	if hi != "7" {
		return p
	}

	start, err := strconv.Atoi(lo)
	if err != nil || start < 0 || start > 7 {
		return p
	}
	step := 1
	if hasStep {
		if step, err = strconv.Atoi(stepStr); err != nil || step <= 0 {
			return p
		}
	}

	days := make([]string, 0, 8)
	for d := start; d <= 7; d += step {
		days = append(days, strconv.Itoa(d%7))
	}
	return strings.Join(days, ",")
}

func hasZonePrefix(expr string) bool {
	expr = strings.TrimSpace(expr)
	return strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=")
}

// matches asks the schedule for its first activation at or after the start
// of t's minute and checks that it is that minute.
func matches(sched *cron.SpecSchedule, t time.Time) bool {
	minute := t.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute)
}
