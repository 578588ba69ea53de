package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrSessionActive      = errors.New("generation already in progress")
	ErrMissingCredentials = errors.New("provider credentials not configured")

	// ErrPollTimeout is returned when a job does not reach a terminal
	// status within the poll attempt bound. Distinct from a provider
	// reported failure.
	ErrPollTimeout = errors.New("generation timed out")
)

// ValidationError reports a precondition violation detected before any
// remote call is made. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RemoteError wraps a failure returned by a remote provider or by the
// backend API. StatusCode carries the provider HTTP status when known.
type RemoteError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// TerminalFailureError reports that the provider itself ended the job with
// failed or canceled. Message holds the provider error when present.
type TerminalFailureError struct {
	Status  JobStatus
	Message string
}

func (e *TerminalFailureError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return MessageForStatus(e.Status, "en")
}
