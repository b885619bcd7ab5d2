package fan

import "errors"

// Domain errors for fan devices.
var (
	// ErrUnsupported is returned when a command targets a feature the model does not have.
	ErrUnsupported = errors.New("fan: not supported by this device")

	// ErrNotConnected is returned when an operation needs a transport and none is attached.
	ErrNotConnected = errors.New("fan: device not connected")

	// ErrUnknownProperty is returned when a property name was never declared.
	ErrUnknownProperty = errors.New("fan: unknown property")

	// ErrNilTransport is returned by Attach when called with a nil transport.
	ErrNilTransport = errors.New("fan: transport is nil")

	// ErrModelRequired is returned by NewDevice when neither a model nor a transport is given.
	ErrModelRequired = errors.New("fan: model is required without a transport")
)
