package march

import (
	"errors"
	"fmt"
)

// ErrConfig wraps every configuration error detected before the first step.
var ErrConfig = errors.New("invalid march configuration")

// Error reports a march that failed part way, typically because walk
// dispatch failed. No partial result accompanies it.
type Error struct {
	Policy Policy
	Step   int
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s march failed at step %d: %v", e.Policy, e.Step, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error's cause.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
