package outlet

import "errors"

// Domain errors for the outlet package.
var (
	// ErrOutletNotFound is returned when an outlet ID does not exist.
	ErrOutletNotFound = errors.New("outlet: not found")

	// ErrPersistence wraps every storage read or write failure.
	ErrPersistence = errors.New("outlet: persistence failure")

	// ErrLastRanRegression is returned when SetLastRan would move last_ran backwards.
	ErrLastRanRegression = errors.New("outlet: last_ran may not move backwards")

	// ErrInvalidOutlet is returned by Upsert for an unusable definition.
	ErrInvalidOutlet = errors.New("outlet: invalid definition")
)
