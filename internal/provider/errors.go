package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrTransient marks a failure worth retrying
	ErrTransient = errors.New("transient provider error")
	// ErrDisabled is reported for providers switched off by configuration
	ErrDisabled = errors.New("provider disabled")
	// ErrRateLimited is reported when the request window is full
	ErrRateLimited = errors.New("provider rate limit exceeded")
	// ErrAuth marks a credential failure. It is never retried.
	ErrAuth = errors.New("provider authentication failed")
)

// StatusError is a non-200 answer from a remote API
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// IsRetryable classifies an error returned by a Backend
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
