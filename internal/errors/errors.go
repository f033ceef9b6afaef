package errors

import (
	"errors"
	"fmt"
)

// Common error types for the kiddiebus client core
var (
	// Credential errors at login, register and external-identity login
	ErrAuthentication = errors.New("authentication failed")

	// Expired or invalid access token on a protected call
	ErrAuthorization = errors.New("not authorized")

	// Refresh token invalid or expired; the session has been ended
	ErrRefreshFailure = errors.New("token refresh failed")
	ErrNoRefreshToken = errors.New("no refresh token")

	// Lookup errors
	ErrNotFound = errors.New("not found")

	// Any other network or server failure
	ErrTransientNetwork = errors.New("transient network error")

	// Map resource errors
	ErrMapUnavailable = errors.New("map library unavailable")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors, see errors.Join
func Join(errs ...error) error {
	return errors.Join(errs...)
}
