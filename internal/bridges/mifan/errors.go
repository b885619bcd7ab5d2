package mifan

import "errors"

// Domain errors for the fan bridge package.
var (
	// ErrNoDevice is returned when a command arrives before the controller
	// has produced a device.
	ErrNoDevice = errors.New("bridge: no fan device yet")

	// ErrWrongDevice is returned when a command names a different fan.
	ErrWrongDevice = errors.New("bridge: command addressed to another device")

	// ErrInvalidMessage is returned when a command payload cannot be parsed.
	ErrInvalidMessage = errors.New("bridge: invalid command message")
)
