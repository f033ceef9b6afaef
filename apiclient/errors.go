package apiclient

import (
	"fmt"
	"net/http"

	kberrors "github.com/kiddiebus/kiddiebus-client/internal/errors"
)

// Error is a non-2xx response from the API. It unwraps to the sentinel in
// internal/errors that matches the status, so callers can use errors.Is.
type Error struct {
	StatusCode int
	Message    string // "error" or "msg" field of the body, or the status text
	Path       string
	kind       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (status %d): %s", e.Path, e.kind, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.kind
}

// IsExpiredToken is true for the statuses the server uses for an expired or malformed access token
func IsExpiredToken(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusUnprocessableEntity
}

func newError(path string, status int, msg string) *Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{StatusCode: status, Message: msg, Path: path, kind: classify(path, status)}
}

func classify(path string, status int) error {
	switch {
	case IsCredentialEndpoint(path) && status >= 400 && status < 500:
		return kberrors.ErrAuthentication
	case IsExpiredToken(status), status == http.StatusForbidden:
		return kberrors.ErrAuthorization
	case status == http.StatusNotFound:
		return kberrors.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict:
		return kberrors.ErrInvalidRequest
	default:
		return kberrors.ErrTransientNetwork
	}
}
