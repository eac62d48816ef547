package weather

import (
	"fmt"
	"strings"
	"time"
)

// Reading is one raw DHT22 result. Temperature is in degrees Celsius.
type Reading struct {
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
	ChecksumBad bool    `json:"checksum_bad"`
}

// Validate applies the sensor validity rules.
func (r Reading) Validate() error {
	switch {
	case r.ChecksumBad:
		return fmt.Errorf("%w: checksum mismatch", ErrInvalidReading)
	case r.Humidity <= 0:
		return fmt.Errorf("%w: humidity %.1f", ErrInvalidReading, r.Humidity)
	case r.Temperature <= 0:
		return fmt.Errorf("%w: temperature %.1f", ErrInvalidReading, r.Temperature)
	}
	return nil
}

// Sample is a persisted reading.
type Sample struct {
	ID          int64     `json:"id"`
	RecordedAt  time.Time `json:"recorded_at"`
	Humidity    float64   `json:"humidity"`
	Temperature float64   `json:"temperature"`
}

// Unit is a temperature unit.
type Unit string

// Temperature units.
const (
	Fahrenheit Unit = "F"
	Celsius    Unit = "C"
)

// ParseUnit accepts "F"/"C" in either case. Empty means Fahrenheit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "F":
		return Fahrenheit, nil
	case "C":
		return Celsius, nil
	default:
		return "", fmt.Errorf("weather: unknown temperature unit %q", s)
	}
}

// FromCelsius converts c into u.
func (u Unit) FromCelsius(c float64) float64 {
	if u == Celsius {
		return c
	}
	return c*9/5 + 32
}

// Period names a query window.
type Period string

// Query windows, matching the web API routes.
const (
	PeriodNow     Period = "now"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Window returns the [from, to] range for p ending at now. Daily starts at
// local midnight, weekly seven days back and monthly one calendar month back.
func (p Period) Window(now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	switch p {
	case PeriodDaily:
		y, m, d := local.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), now, nil
	case PeriodWeekly:
		return local.AddDate(0, 0, -7), now, nil
	case PeriodMonthly:
		return local.AddDate(0, -1, 0), now, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, string(p))
	}
}

// Summary describes the samples in a window.
type Summary struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Count int       `json:"count"`
	Unit  Unit      `json:"unit"`

	Temperature Stats `json:"temperature"`
	Humidity    Stats `json:"humidity"`
}

// Stats are descriptive statistics of one series.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}
