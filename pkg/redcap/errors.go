package redcap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp-forge/redcap/pkg/redcap/types"
)

// Errors returned before any request is sent.
var (
	// ErrUnsupportedVersion means no adapter covers the detected REDCap version.
	ErrUnsupportedVersion = errors.New("unsupported REDCap version")

	// ErrOperationUnavailable means the detected release has no such operation.
	ErrOperationUnavailable = errors.New("operation not available on this REDCap version")

	// ErrNotFound means a lookup matched nothing.
	ErrNotFound = errors.New("not found")
)

// Error is the failure of a request that reached the transport. Exactly one
// of *NetworkError, *HTTPError or *APIError implements it for any failure.
type Error interface {
	error
	redcapError()
}

var (
	_ Error = (*NetworkError)(nil)
	_ Error = (*HTTPError)(nil)
	_ Error = (*APIError)(nil)
)

// NetworkError means no response was received. It is the only kind the
// client retries.
type NetworkError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (*NetworkError) redcapError() {}

// HTTPError means the server answered with a non-2xx status. Message is the
// raw response body.
type HTTPError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, msg)
}

func (*HTTPError) redcapError() {}

// APIError is a failure carried by a 2xx response: either REDCap reported
// it in the body as {"error": ..., "code": ...}, or the body could not be
// decoded, in which case Err holds the decoding error.
//
// The Is* classifiers match English substrings of Message. They break if
// REDCap rewords or localizes its messages.
type APIError struct {
	Op      string
	Message string
	Code    string
	Err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: REDCap error %s: %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("%s: REDCap error: %s", e.Op, msg)
}

func (e *APIError) Unwrap() error { return e.Err }

func (*APIError) redcapError() {}

// IsInvalidToken reports whether the message rejects the API token.
func (e *APIError) IsInvalidToken() bool {
	m := strings.ToLower(e.Message)
	return strings.Contains(m, "token") && strings.Contains(m, "invalid")
}

// IsPermissionError reports whether the message denies access.
func (e *APIError) IsPermissionError() bool {
	m := strings.ToLower(e.Message)
	return strings.Contains(m, "permission") ||
		strings.Contains(m, "authoriz") ||
		strings.Contains(m, "access denied")
}

// IsValidationError reports whether the message rejects the parameters.
func (e *APIError) IsValidationError() bool {
	m := strings.ToLower(e.Message)
	return strings.Contains(m, "invalid") ||
		strings.Contains(m, "required") ||
		strings.Contains(m, "must be")
}

// IsInvalidToken reports whether err is an *APIError rejecting the token.
func IsInvalidToken(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsInvalidToken()
}

// IsPermissionError reports whether err is an *APIError denying access.
func IsPermissionError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsPermissionError()
}

// IsRetryable reports whether err is a *NetworkError.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// HTTPStatusFor maps err to the status code a web handler should answer
// with.
func HTTPStatusFor(err error) int {
	var (
		netErr  *NetworkError
		httpErr *HTTPError
		apiErr  *APIError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case types.IsValidationError(err):
		return http.StatusBadRequest
	case errors.As(err, &netErr), errors.As(err, &httpErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		switch {
		case apiErr.IsInvalidToken():
			return http.StatusUnauthorized
		case apiErr.IsPermissionError():
			return http.StatusForbidden
		case apiErr.IsValidationError():
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOperationUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, ErrUnsupportedVersion):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
