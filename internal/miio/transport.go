package miio

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultRefreshDelay is how long a direct-method command waits before
// re-reading the properties it changed. Devices accept a command before the
// new state is readable.
const DefaultRefreshDelay = 200 * time.Millisecond

// CallOptions tunes a single Call.
type CallOptions struct {
	// Refresh lists direct-method property names to re-read after the call
	// succeeds.
	Refresh []string

	// RefreshDelay is the pause before the refresh. Zero means DefaultRefreshDelay.
	RefreshDelay time.Duration
}

// Transport is a live session with one device.
//
// The direct-method property methods (DeclareProperty, PropertySnapshot,
// RefreshDeclaredProperties) are only meaningful for miIO devices; MIoT
// devices use Call with get_properties/set_properties instead.
type Transport interface {
	// Call invokes a remote method and returns the raw JSON result. When the
	// call succeeds but the opts.Refresh re-read does not, the result comes
	// back with a *RefreshError.
	Call(ctx context.Context, method string, params any, opts CallOptions) (json.RawMessage, error)

	// DeclareProperty adds a property name to the direct-method snapshot.
	// Declaring a name twice has no effect.
	DeclareProperty(name string)

	// PropertySnapshot returns a copy of the direct-method snapshot.
	PropertySnapshot() map[string]any

	// RefreshDeclaredProperties re-reads every declared property and returns
	// the updated snapshot.
	RefreshDeclaredProperties(ctx context.Context) (map[string]any, error)

	// Model returns the hardware model reported during connect.
	Model() string

	// DeviceID returns the device id reported during the handshake.
	DeviceID() string

	// Destroy closes the session. It is safe to call more than once.
	Destroy() error
}

// Dialer opens transports. The connection controller depends on this
// interface so tests can substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, address, token string) (Transport, error)
}

// Info is the miIO.info response.
type Info struct {
	Model           string `json:"model"`
	FirmwareVersion string `json:"fw_ver"`
	HardwareVersion string `json:"hw_ver"`
	MAC             string `json:"mac"`
	Network         struct {
		LocalIP string `json:"localIp"`
		Gateway string `json:"gw"`
	} `json:"netif"`
}

// PropertyAddress addresses one MIoT property or action.
type PropertyAddress struct {
	DID   string `json:"did"`
	SIID  int    `json:"siid"`
	PIID  int    `json:"piid"`
	Value any    `json:"value,omitempty"`
}

// PropertyResult is one entry of a get_properties or set_properties result.
type PropertyResult struct {
	DID   string `json:"did"`
	SIID  int    `json:"siid"`
	PIID  int    `json:"piid"`
	Code  int    `json:"code"`
	Value any    `json:"value,omitempty"`
}

// OK reports whether the device accepted this entry.
func (r PropertyResult) OK() bool {
	return r.Code == 0
}

// UDPDialer dials real devices with Connect.
type UDPDialer struct {
	// Timeout is the per-attempt response timeout. Zero means the default.
	Timeout time.Duration

	// Retries is the number of retransmits per request. Zero means the default.
	Retries int

	// Logger receives debug output. Optional.
	Logger Logger
}

// Dial implements Dialer.
func (d UDPDialer) Dial(ctx context.Context, address, token string) (Transport, error) {
	c, err := Connect(ctx, Config{
		Address: address,
		Token:   token,
		Timeout: d.Timeout,
		Retries: d.Retries,
		Logger:  d.Logger,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

var (
	_ Transport = (*Client)(nil)
	_ Dialer    = UDPDialer{}
)
