package parley

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrStateViolation indicates an operation was attempted in a state
	// that does not allow it. The more specific errors below wrap it.
	ErrStateViolation = errors.New("state violation")

	// ErrEmptyMessage indicates a send with empty or whitespace-only content.
	ErrEmptyMessage = fmt.Errorf("empty message: %w", ErrStateViolation)

	// ErrNoTarget indicates a send with no bound target.
	ErrNoTarget = fmt.Errorf("no target bound: %w", ErrStateViolation)

	// ErrBusy indicates a send while a previous reply is still streaming.
	ErrBusy = fmt.Errorf("reply in progress: %w", ErrStateViolation)

	// ErrSessionChanged indicates a session was replaced while an
	// operation on it was in flight. The operation's result was discarded.
	ErrSessionChanged = errors.New("session changed")

	// ErrIdleTimeout indicates the transport stopped delivering chunks for
	// longer than the configured idle timeout.
	ErrIdleTimeout = errors.New("stream idle timeout")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrValidation indicates a request or message failed validation.
	ErrValidation = errors.New("validation error")
)

// StatusError reports a non-success HTTP status returned before any
// response body was consumed.
type StatusError struct {
	StatusCode int
	Message    string // server-provided message or raw body, may be empty
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
