package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// NetworkError wraps transport failures: refused connections, DNS failures,
// resets. Retryable.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError wraps deadline and timeout failures. Retryable, treated the
// same as a network error by callers.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("timeout: %v", e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// APIError is a non-transport failure reported by the remote service
// (validation, authorization, unexpected server error). Not retryable:
// replaying the same request later would fail the same way.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote api error (status %d): %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether an error is network-classified: the punch can
// be queued and replayed once connectivity returns.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	var toErr *TimeoutError
	return errors.As(err, &netErr) || errors.As(err, &toErr)
}

// classifyTransportError maps an http.Client error into the structured
// taxonomy. Every transport-level failure is either a timeout or a network
// error; classification never inspects error message text.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &TimeoutError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Err: err}
	}

	return &NetworkError{Err: err}
}
