package watertemp

import (
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// DS18B20 rated range in degrees Celsius.
const (
	MinCelsius = -55.0
	MaxCelsius = 125.0
)

// Reading is one raw sensor result in degrees Celsius.
type Reading struct {
	Temperature float64 `json:"temperature"`
}

// Validate rejects non-finite values and values outside the sensor range.
// Zero is a valid water temperature.
func (r Reading) Validate() error {
	t := r.Temperature
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: temperature is not finite", ErrInvalidReading)
	}
	if t < MinCelsius || t > MaxCelsius {
		return fmt.Errorf("%w: temperature %.2f outside [%.0f, %.0f]", ErrInvalidReading, t, MinCelsius, MaxCelsius)
	}
	return nil
}

// Sample is a persisted reading, in the unit the ingester was configured with.
type Sample struct {
	ID          int64     `json:"id"`
	RecordedAt  time.Time `json:"recorded_at"`
	Temperature float64   `json:"temperature"`
}

// Window returns the [from, now] range for p. Every window starts at a local
// midnight: today's for daily, seven days back for weekly and one calendar
// month back for monthly.
func Window(p weather.Period, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	switch p {
	case weather.PeriodDaily:
		return startOfDay(local), now, nil
	case weather.PeriodWeekly:
		return startOfDay(local.AddDate(0, 0, -7)), now, nil
	case weather.PeriodMonthly:
		return startOfDay(local.AddDate(0, -1, 0)), now, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, string(p))
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
