package schedule

import (
	"errors"
	"fmt"
)

// ErrScheduleParse is matched by every malformed-expression error.
var ErrScheduleParse = errors.New("schedule: invalid cron expression")

// ScheduleParseError carries the expression that failed to parse.
type ScheduleParseError struct {
	Expression string
	Err        error
}

func (e *ScheduleParseError) Error() string {
	return fmt.Sprintf("schedule: invalid cron expression %q: %v", e.Expression, e.Err)
}

// Is reports whether target is ErrScheduleParse.
func (e *ScheduleParseError) Is(target error) bool {
	return target == ErrScheduleParse
}

func (e *ScheduleParseError) Unwrap() error {
	return e.Err
}
