// internal/github/errors.go
package github

import (
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v62/github"
)

// Failure taxonomy for upstream calls. Callers branch on these with
// errors.Is; any other non-2xx (and transport-level failures, including
// timeouts) surfaces as a *StatusError.
var (
	ErrNotFound     = errors.New("github: not found")
	ErrRateLimited  = errors.New("github: rate limit exceeded")
	ErrUnauthorized = errors.New("github: authentication failed")
)

// StatusError is the catch-all variant for upstream failures that are not
// part of the named taxonomy. StatusCode is 0 when the request never
// produced a response (network error, timeout).
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("github: request failed: %v", e.Err)
	}
	return fmt.Sprintf("github: unexpected status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// mapError translates go-github errors into the taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		default:
			return &StatusError{StatusCode: respErr.Response.StatusCode, Err: err}
		}
	}

	return &StatusError{Err: err}
}
