package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrPageCeilingExceeded = errors.New("admin: remote collection exceeds page ceiling")
	ErrEmptyBaseURL        = errors.New("admin: base url required")
)

// StatusError is a non-2xx/3xx response from the admin API.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("admin: %s %s: http %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("admin: %s %s: http %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// Retryable reports whether the status indicates transient gateway state.
func (e *StatusError) Retryable() bool {
	return retryableStatus(e.StatusCode)
}

// CommunicationError is returned once every attempt for a request failed.
type CommunicationError struct {
	Method   string
	URL      string
	Attempts int
	Err      error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("admin: %s %s failed after %d attempts: %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == code
	}
	return false
}

func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

func IsConflict(err error) bool {
	return IsStatus(err, http.StatusConflict)
}

// ResponseBody extracts the remote response body from err, if any.
func ResponseBody(err error) (string, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return string(se.Body), true
	}
	return "", false
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
