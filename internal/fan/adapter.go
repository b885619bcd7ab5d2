package fan

import (
	"context"

	"github.com/nerrad567/gray-logic-fan/internal/miio"
)

// Protocol is the RPC dialect a model speaks.
type Protocol string

const (
	// ProtocolMiio is the direct-method dialect: method name plus positional
	// arguments, properties read by name.
	ProtocolMiio Protocol = "miio"

	// ProtocolMiot is the generic-property dialect: every property and
	// command addressed by a (did, siid, piid) triple.
	ProtocolMiot Protocol = "miot"
)

// Logger is the logging interface used by devices and adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards everything.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// UpdateHandler receives the merged snapshot after a local (predicted or
// acknowledged) write.
type UpdateHandler func(Snapshot)

// adapter is the part of a protocol adapter the Device drives generically.
// Writes are protocol specific and go through the concrete types.
type adapter interface {
	Protocol() Protocol

	// Bind attaches t. It returns the previous transport and whether the
	// binding changed; binding the current transport again is a no-op.
	Bind(t miio.Transport) (previous miio.Transport, changed bool)

	// Unbind detaches and returns the current transport.
	Unbind() miio.Transport

	Transport() miio.Transport
	Connected() bool

	// Refresh reads every declared property from the device.
	Refresh(ctx context.Context) (Snapshot, error)

	// Properties returns the merged snapshot, empty when not connected.
	Properties() Snapshot

	// Reading returns one cached value with its source.
	Reading(name string) (Reading, bool)

	SetUpdateHandler(h UpdateHandler)
}
