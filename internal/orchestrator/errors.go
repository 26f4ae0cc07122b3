package orchestrator

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: a storage timeout or a
// momentary I/O hiccup while fetching or persisting image bytes. Anything
// not wrapped in it is terminal for the task.
type TransientError struct {
	Operation string
	Err       error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s error: %v", e.Operation, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
