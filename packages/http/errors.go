package http

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrBodyAlreadyConsumed is returned when a one-shot request body is needed
// for a second attempt.
var ErrBodyAlreadyConsumed = errors.New("request body already consumed")

// InvalidURLError reports a URL that cannot be parsed or is not http(s).
// No attempt is made.
type InvalidURLError struct {
	URL string
	Err error
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid URL %q: %v", e.URL, e.Err)
}

func (e *InvalidURLError) Unwrap() error { return e.Err }

// AuthConfigurationError reports credentials that are insufficient to sign or
// authenticate a request. It is never retried.
type AuthConfigurationError struct {
	Mode   AuthMode
	Reason string
	Err    error
}

func (e *AuthConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s auth: %s: %v", e.Mode, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s auth: %s", e.Mode, e.Reason)
}

func (e *AuthConfigurationError) Unwrap() error { return e.Err }

// NetworkError wraps a connection, TLS or timeout failure on one attempt.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or i/o timeout.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// RedirectLimitExceededError is returned together with the last response and
// the full timeline when a redirect chain is longer than allowed.
type RedirectLimitExceededError struct {
	Max int
	URL string
}

func (e *RedirectLimitExceededError) Error() string {
	return fmt.Sprintf("stopped after %d redirects at %s", e.Max, e.URL)
}

// CancelledError means the caller cancelled the logical request. It is not a
// failure.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return "request cancelled"
}

func (e *CancelledError) Unwrap() error { return e.Err }

// IsCancelled reports whether err is a CancelledError.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// Error kind tags, stable for output and persistence.
const (
	KindInvalidURL        = "invalid_url"
	KindAuthConfiguration = "auth_configuration"
	KindNetwork           = "network"
	KindRedirectLimit     = "redirect_limit"
	KindCancelled         = "cancelled"
	KindBodyConsumed      = "body_consumed"
	KindUnknown           = "unknown"
)

// ErrorKind maps an engine error to its tag. A nil error yields "".
func ErrorKind(err error) string {
	var (
		invalidURL *InvalidURLError
		authErr    *AuthConfigurationError
		netErr     *NetworkError
		limitErr   *RedirectLimitExceededError
	)
	switch {
	case err == nil:
		return ""
	case IsCancelled(err):
		return KindCancelled
	case errors.As(err, &invalidURL):
		return KindInvalidURL
	case errors.As(err, &authErr):
		return KindAuthConfiguration
	case errors.As(err, &limitErr):
		return KindRedirectLimit
	case errors.Is(err, ErrBodyAlreadyConsumed):
		return KindBodyConsumed
	case errors.As(err, &netErr):
		return KindNetwork
	default:
		return KindUnknown
	}
}
