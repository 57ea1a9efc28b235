package schema

import (
	"errors"
	"fmt"
)

// ErrComponent marks a failure raised by a user-defined component while
// running. It aborts the current batch and propagates to the caller; the
// engine never swallows it.
var ErrComponent = errors.New("component failed")

// ComponentError wraps an error from a named component so callers can tell
// which stage of the pipeline failed.
func ComponentError(kind, name string, err error) error {
	return fmt.Errorf("%s %q: %w (%w)", kind, name, err, ErrComponent)
}

// ValidationError reports that a validator returned a level above the
// schema's allowed validation level. It aborts the batch and carries the
// offending result.
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s][%s]: %s", e.Result.Level, e.Result.Validator, e.Result.Message)
}
