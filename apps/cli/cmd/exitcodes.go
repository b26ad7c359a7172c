package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// Exit codes for hitwire CLI
const (
	// ExitSuccess indicates every request completed
	ExitSuccess = 0

	// ExitRequestFailure indicates one or more requests failed
	ExitRequestFailure = 1

	// ExitParseError indicates a request file could not be loaded
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64

	// ExitCancelled matches a shell's SIGINT status
	ExitCancelled = 130
)

// errReported marks failures the formatter has already printed.
var errReported = errors.New("reported")

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch http.ErrorKind(err) {
	case http.KindCancelled:
		return ExitCancelled
	case http.KindNetwork:
		return ExitNetworkError
	case http.KindInvalidURL, http.KindAuthConfiguration:
		return ExitUsageError
	default:
		return ExitRequestFailure
	}
}
