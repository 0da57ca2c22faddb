// Package zumo is a client for Mobile Services backends: session login
// (token exchange, provider token, or browser-driven OAuth), and CRUD
// access to remote tables with JSON payloads.
package zumo

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, zumo.ErrNotFound) to check.
var (
	ErrBadRequest         = errors.New("zumo: bad request")
	ErrUnauthorized       = errors.New("zumo: unauthorized")
	ErrForbidden          = errors.New("zumo: forbidden")
	ErrNotFound           = errors.New("zumo: not found")
	ErrConflict           = errors.New("zumo: conflict")
	ErrPreconditionFailed = errors.New("zumo: precondition failed")
	ErrServerError        = errors.New("zumo: server error")
)

// Caller-input and protocol errors. Caller-input errors are returned before
// any request is issued.
var (
	ErrMissingID            = errors.New("zumo: missing [id] field")
	ErrEmptyToken           = errors.New("zumo: empty authentication token")
	ErrUnknownProvider      = errors.New("zumo: unknown authentication provider")
	ErrLoginInProgress      = errors.New("zumo: login is still in progress")
	ErrInvalidLoginResponse = errors.New("zumo: login response did not contain a token")
	ErrLoginCanceled        = errors.New("zumo: login canceled")
	ErrNilSurface           = errors.New("zumo: nil navigation surface")
	ErrInvalidQuery         = errors.New("zumo: invalid query")
	ErrEmptyTableName       = errors.New("zumo: empty table name")
)

// bodyUnreadable replaces the response body in an HTTPError when the body
// could not be read.
const bodyUnreadable = "(response body could not be read)"

// HTTPError is returned for any non-2xx response. It carries the numeric
// status, the status text, and the response body.
type HTTPError struct {
	StatusCode int
	Status     string // status text, e.g. "Not Found"
	Body       string
	Err        error // sentinel, for errors.Is(); nil for unclassified codes
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("zumo: HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// TransportError is returned when no HTTP response was received at all
// (DNS, connection refused, TLS, timeout). Err is the underlying cause.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("zumo: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// LoginError reports a failure returned by the service at the end of a
// browser login, carried in the completion URL as "#error=...".
type LoginError struct {
	Provider Provider
	Reason   string
	Err      error
}

func (e *LoginError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("zumo: %s login failed", e.Provider)
	}

	return fmt.Sprintf("zumo: %s login failed: %s", e.Provider, e.Reason)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// unwrapTransport strips one level of wrapping from a net/http client error.
// The client always wraps the real cause in *url.Error.
func unwrapTransport(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}

	return err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusPreconditionFailed:
		return ErrPreconditionFailed
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
