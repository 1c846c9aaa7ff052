package devops

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// ErrRemoteQueryFailed marks a failed page request inside a paged query
var ErrRemoteQueryFailed = errors.New("remote query failed")

// APIError is a non-2xx response from the review service
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, truncate(e.Body, 512))
}

// IsAuthorization reports whether the service refused the caller's identity
func (e *APIError) IsAuthorization() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound reports whether the target entity does not exist
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// QueryError wraps the failure of one page of a paged query.
// Page is zero-based.
type QueryError struct {
	Page int
	URI  string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%v: page %d (%s): %v", ErrRemoteQueryFailed, e.Page, e.URI, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrRemoteQueryFailed }

// AsAPIError extracts an APIError from an error chain
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
