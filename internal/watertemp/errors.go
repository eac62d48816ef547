package watertemp

import "errors"

// Domain errors for the watertemp package.
var (
	// ErrInvalidReading is returned when a reading is not a finite value
	// within the sensor range. The reading is discarded.
	ErrInvalidReading = errors.New("watertemp: invalid reading")

	// ErrPersistence wraps every storage read or write failure.
	ErrPersistence = errors.New("watertemp: persistence failure")

	// ErrNoSamples is returned by Latest on an empty log.
	ErrNoSamples = errors.New("watertemp: no samples recorded")

	// ErrUnknownPeriod is returned for a period other than daily/weekly/monthly.
	ErrUnknownPeriod = errors.New("watertemp: unknown period")
)
