package process

import "errors"

var (
	// ErrAlreadyRunning indicates Start was called on a running manager.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrInvalidConfig indicates a collaborator definition is unusable.
	ErrInvalidConfig = errors.New("process: invalid config")
)

// RecoverableError lets an exit error state whether a restart is worthwhile.
type RecoverableError interface {
	error
	IsRecoverable() bool
}

// IsRecoverable reports whether err permits a restart. Errors that do not
// implement RecoverableError are treated as recoverable.
func IsRecoverable(err error) bool {
	var re RecoverableError
	if errors.As(err, &re) {
		return re.IsRecoverable()
	}
	return true
}
