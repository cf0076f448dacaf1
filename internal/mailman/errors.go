package mailman

import (
	"errors"
	"fmt"
)

// APIError indicates that the REST API could not be reached at all
// (connection refused, DNS failure, timeout).
type APIError struct {
	Method string
	Path   string
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mailman API unreachable on %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// NotFoundError is returned for a 404 response.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mailman resource not found: %s", e.Path)
}

// AuthError indicates that the REST credentials were rejected.
// It is returned when a 401 or 403 response is received.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mailman auth error (%d): %s", e.StatusCode, e.Message)
}

// StatusError is any other non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// IsUnreachable reports whether err (or any error in its chain) is an APIError.
func IsUnreachable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
