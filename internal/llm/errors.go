package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// ProviderError is a failed call to a chat or embedding provider.
type ProviderError struct {
	Provider   Provider
	StatusCode int
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (%s, status %d): %v", e.Provider, kind, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, kind, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ServiceUnavailableError means a provider kept failing transiently until the
// retry budget was spent, or its circuit breaker is open.
type ServiceUnavailableError struct {
	Provider Provider
	Attempts int
	Cause    error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable after %d attempt(s): %v", e.Provider, e.Attempts, e.Cause)
}

func (e *ServiceUnavailableError) Unwrap() error {
	return e.Cause
}

// IsServiceUnavailable reports whether err is a ServiceUnavailableError.
func IsServiceUnavailable(err error) bool {
	var su *ServiceUnavailableError
	return errors.As(err, &su)
}

// IsTransient reports whether err is worth retrying: timeouts, rate limits
// and provider-side 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// TransientStatus reports whether an HTTP status code signals a retryable condition.
func TransientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout,
		529: // provider overloaded
		return true
	}
	return false
}

// NewProviderError classifies a raw SDK error. statusCode may be 0 when the
// SDK does not expose one.
func NewProviderError(p Provider, statusCode int, cause error) *ProviderError {
	transient := TransientStatus(statusCode)
	if statusCode == 0 {
		transient = IsTransient(cause) || looksTransient(cause)
	}
	return &ProviderError{Provider: p, StatusCode: statusCode, Transient: transient, Cause: cause}
}

// googleStatus extracts the HTTP status from Google API errors.
func googleStatus(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

var transientMarkers = []string{
	"resource_exhausted",
	"rate limit",
	"unavailable",
	"deadline exceeded",
	"timeout",
	"overloaded",
	"connection reset",
	"429",
	"503",
}

// looksTransient is the last-resort classification for SDKs that only return
// status text, such as gRPC transports.
func looksTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
