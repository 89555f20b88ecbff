package model

import "errors"

var (
	// ErrLightNotFound is returned for an id that is not in the registry.
	ErrLightNotFound = errors.New("light not found")

	// ErrBackendUnavailable means the backend could not be reached, timed out
	// or kept rejecting the session.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendAuth means the backend rejected the session credential.
	ErrBackendAuth = errors.New("backend authentication failed")

	// ErrBackendRejected means the backend was reachable but refused the command.
	ErrBackendRejected = errors.New("backend rejected command")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidValue is returned for an attribute value outside its range.
	ErrInvalidValue = errors.New("invalid value")
)

// Unreachable reports whether err means the backend itself failed, as opposed
// to refusing a single command.
func Unreachable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrBackendAuth)
}
