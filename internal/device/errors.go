package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // first run, nothing cached yet
//	}
var (
	// ErrDeviceNotFound is returned when no record exists for an ID.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidDevice is returned when a record is missing required fields.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidRetention is returned when pruning with a non-positive age.
	ErrInvalidRetention = errors.New("device: retention must be positive")
)
