package weather

import "errors"

// Domain errors for the weather package.
var (
	// ErrInvalidReading is returned when a sensor reading fails validation.
	// The reading is discarded.
	ErrInvalidReading = errors.New("weather: invalid sensor reading")

	// ErrPersistence wraps every storage read or write failure.
	ErrPersistence = errors.New("weather: persistence failure")

	// ErrNoSamples is returned by Latest on an empty log.
	ErrNoSamples = errors.New("weather: no samples recorded")

	// ErrUnknownPeriod is returned for a period name other than now/daily/weekly/monthly.
	ErrUnknownPeriod = errors.New("weather: unknown period")
)
