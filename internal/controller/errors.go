package controller

import "errors"

var (
	// ErrAddressRequired is returned by New when no device address is configured.
	ErrAddressRequired = errors.New("controller: address is required")

	// ErrTokenRequired is returned by New when no device token is configured.
	ErrTokenRequired = errors.New("controller: token is required")

	// ErrAlreadyStarted is returned by Start when the controller is running.
	ErrAlreadyStarted = errors.New("controller: already started")

	// ErrNoDevice is returned when an operation needs a device before one exists.
	ErrNoDevice = errors.New("controller: no fan device yet")
)
