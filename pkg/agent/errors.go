package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrStateNotFound indicates the requested state data was not found.
	ErrStateNotFound = errors.New("state not found")

	// ErrInvalidTransition indicates an invalid state transition was attempted.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState indicates an invalid state was provided.
	ErrInvalidState = errors.New("invalid state")

	// ErrTaskFailed indicates a task request failed on both attempts.
	ErrTaskFailed = errors.New("task request failed after retry")
)

// DecodeError reports a model answer that did not match the capability's
// output contract. It is never retried.
type DecodeError struct {
	Err       error
	Operation string
	Raw       string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Operation, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
