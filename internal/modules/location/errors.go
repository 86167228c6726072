// README: Acquisition error taxonomy and the friendly messages shown to users.
package location

import (
	"context"
	"errors"
)

var (
	ErrServicesDisabled    = errors.New("location services are disabled")
	ErrPermissionDenied    = errors.New("location access was denied")
	ErrTimeout             = errors.New("location request timed out")
	ErrSuperseded          = errors.New("location request superseded by a newer request")
	ErrLocationUnavailable = errors.New("location is unavailable")
	// ErrGeocodingDegraded is logged when an entry is produced without a label.
	// Acquire never returns it.
	ErrGeocodingDegraded = errors.New("reverse geocoding failed")
)

// UnknownError wraps any platform failure outside the named taxonomy.
type UnknownError struct {
	Cause error
}

func (e *UnknownError) Error() string {
	if e.Cause == nil {
		return "unknown location error"
	}
	return "unknown location error: " + e.Cause.Error()
}

func (e *UnknownError) Unwrap() error { return e.Cause }

// Outcome returns the metrics label for an Acquire result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrServicesDisabled):
		return "services_disabled"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	default:
		return "unknown"
	}
}

// FriendlyMessage maps err to the text presented to the user. In debug mode the
// raw error text is returned for unknown failures.
func FriendlyMessage(err error, debug bool) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrServicesDisabled):
		return "Location services are disabled. Please enable them in Settings."
	case errors.Is(err, ErrPermissionDenied):
		return "Location access was denied. Please allow access in Settings."
	case errors.Is(err, ErrTimeout):
		return "Unable to determine your location. Please try again."
	case errors.Is(err, ErrSuperseded):
		return "A newer location request replaced this one."
	case errors.Is(err, ErrLocationUnavailable):
		return "Unable to update location. Please try again."
	case errors.Is(err, context.Canceled):
		return "Location update was canceled."
	}
	if debug {
		return err.Error()
	}
	return "Unable to access location services. Please try again."
}
