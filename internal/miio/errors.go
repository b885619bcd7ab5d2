package miio

import (
	"errors"
	"fmt"
)

// Domain errors for the miio transport.
var (
	// ErrInvalidToken is returned when the device token is not 32 hex characters.
	ErrInvalidToken = errors.New("miio: token must be 32 hex characters")

	// ErrHandshakeFailed is returned when the device does not answer the hello packet.
	ErrHandshakeFailed = errors.New("miio: handshake failed")

	// ErrTimeout is returned when no matching response arrives in time.
	ErrTimeout = errors.New("miio: request timed out")

	// ErrClosed is returned when a call is made on a destroyed transport.
	ErrClosed = errors.New("miio: transport closed")

	// ErrInvalidPacket is returned when a datagram cannot be parsed.
	ErrInvalidPacket = errors.New("miio: invalid packet")

	// ErrChecksumMismatch is returned when a packet checksum does not verify.
	ErrChecksumMismatch = errors.New("miio: checksum mismatch")

	// ErrUnexpectedResponse is returned when a result does not have the expected shape.
	ErrUnexpectedResponse = errors.New("miio: unexpected response")
)

// RPCError is an error reported by the device in a response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e *RPCError) Error() string {
	return fmt.Sprintf("miio: device error %d: %s", e.Code, e.Message)
}

// RefreshError is returned by Call when the device acknowledged the call but
// the follow-up property refresh failed. The call result is still returned
// alongside it.
type RefreshError struct {
	// Refreshed lists the names re-read before the failure.
	Refreshed []string
	// Missed lists the names that were not re-read.
	Missed    []string
	Err       error
}

// Error implements error.
func (e *RefreshError) Error() string {
	return fmt.Sprintf("miio: refreshing %v after call: %v", e.Missed, e.Err)
}

// Unwrap returns the refresh failure.
func (e *RefreshError) Unwrap() error {
	return e.Err
}
