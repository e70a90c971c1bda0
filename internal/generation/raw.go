package generation

import (
	"fmt"
	"time"
)

// RawError is the uniform failure shape adapters report for provider
// calls. It preserves the transport-level facts the classifier inspects:
// HTTP status code, timeout flag, message text and any provider-supplied
// retry hint.
type RawError struct {
	// StatusCode is the HTTP status of the failed call, or 0 when the
	// failure happened below the HTTP layer.
	StatusCode int

	// Timeout is set when the call exceeded its deadline.
	Timeout bool

	// Message is the provider's error text, or a transport error string.
	Message string

	// RetryAfter is the provider-supplied minimum wait before retrying,
	// zero when the provider gave no hint.
	RetryAfter time.Duration

	// Err is the underlying error, if any.
	Err error
}

func (e *RawError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider call failed (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Timeout {
		return fmt.Sprintf("provider call timed out: %s", e.Message)
	}
	return fmt.Sprintf("provider call failed: %s", e.Message)
}

func (e *RawError) Unwrap() error {
	return e.Err
}
