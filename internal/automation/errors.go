package automation

import "errors"

// Domain errors for the automation package.
var (
	// ErrInvalidOverrideDuration is returned for a motion override of zero or fewer minutes.
	ErrInvalidOverrideDuration = errors.New("automation: override duration must be positive")
)
