package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Capability tags a request with the kind of endpoint it targets.
type Capability string

const (
	CapabilityLLM    Capability = "llm"
	CapabilitySearch Capability = "search"
)

// ServiceUnavailableError surfaces once the retry budget for transient
// failures is exhausted.
type ServiceUnavailableError struct {
	Capability Capability
	Attempts   int
	Err        error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s service unavailable after %d attempts: %v", e.Capability, e.Attempts, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// RequestRejectedError surfaces immediately on non-retryable failures
// (malformed request, auth failure). Never retried.
type RequestRejectedError struct {
	Capability Capability
	Err        error
}

func (e *RequestRejectedError) Error() string {
	return fmt.Sprintf("%s request rejected: %v", e.Capability, e.Err)
}

func (e *RequestRejectedError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is a retry-exhausted service failure.
func IsUnavailable(err error) bool {
	var target *ServiceUnavailableError
	return errors.As(err, &target)
}

// IsRejected reports whether err is a non-retryable rejection.
func IsRejected(err error) bool {
	var target *RequestRejectedError
	return errors.As(err, &target)
}

// permanentError marks a failure the retry loop must not repeat.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// Retryable is the retryable-error predicate consumed by the client's retry
// loop. Timeouts, rate limits, and server-side failures retry; anything
// marked Permanent, plus caller cancellation, does not. Unknown errors
// default to retryable: the provider side of this boundary is assumed flaky.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Last-resort text check for transports that flatten the status into
	// the message. Word markers only: bare digits like "400" also show up
	// in URLs and byte counts of perfectly transient errors.
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unauthorized", "forbidden", "bad request", "not found"} {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}
