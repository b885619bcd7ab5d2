package fan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/miio"
)

// Option configures a Device.
type Option func(*deviceOptions)

type deviceOptions struct {
	logger       Logger
	refreshDelay time.Duration
}

// WithLogger sets the device logger. Every line carries device and model fields.
func WithLogger(l Logger) Option {
	return func(o *deviceOptions) { o.logger = l }
}

// WithRefreshDelay sets the pause between a direct-method command and the
// property refresh that follows it.
func WithRefreshDelay(d time.Duration) Option {
	return func(o *deviceOptions) { o.refreshDelay = d }
}

// Device is one fan: a capability set, a protocol adapter and the profile
// that maps features to properties.
//
// A Device starts unbound when built from a cached model. Status accessors
// answer from the last snapshot and return zero values while unbound;
// commands return ErrNotConnected.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Attach and Detach are serialised.
type Device struct {
	profile *Profile
	name    string
	logger  Logger

	adapter adapter
	direct  *DirectMethodAdapter
	generic *GenericPropertyAdapter

	// attachMu serialises Attach and Detach.
	attachMu sync.Mutex

	mu       sync.RWMutex
	model    string
	deviceID string
	info     *miio.Info
}

// newDevice builds a device for a profile. It performs no I/O.
func newDevice(p *Profile, model, deviceID, name string, opts ...Option) *Device {
	var o deviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	deviceID = strings.TrimPrefix(deviceID, "miio:")
	lg := Logger(noopLogger{})
	if o.logger != nil {
		lg = fieldLogger{next: o.logger, fields: []any{"device", name, "model", model}}
	}

	d := &Device{
		profile:  p,
		name:     name,
		logger:   lg,
		model:    model,
		deviceID: deviceID,
	}

	switch p.Protocol {
	case ProtocolMiio:
		d.direct = NewDirectMethodAdapter(p.propertyNames(), o.refreshDelay, lg)
		d.adapter = d.direct
	default:
		d.generic = NewGenericPropertyAdapter(deviceID, lg)
		for _, def := range p.Properties {
			d.generic.DeclareProperty(def.Name, def.SIID, def.PIID)
		}
		for _, def := range p.Commands {
			d.generic.DeclareCommand(def.Name, def.SIID, def.PIID)
		}
		d.adapter = d.generic
	}
	return d
}

// Attach binds a live transport and runs the initial property fetch.
//
// Attaching the transport that is already bound does nothing. Attaching a
// different transport destroys the previous one and re-declares properties
// on the new one exactly once. A failed initial fetch is logged; the poll
// loop retries it.
//
// Parameters:
//   - ctx: Context for the initial fetch
//   - t: Connected transport
//
// Returns:
//   - error: ErrNilTransport when t is nil
func (d *Device) Attach(ctx context.Context, t miio.Transport) error {
	if t == nil {
		return ErrNilTransport
	}
	d.attachMu.Lock()
	defer d.attachMu.Unlock()

	previous, changed := d.adapter.Bind(t)
	if !changed {
		d.logger.Debug("transport already attached")
		return nil
	}
	if previous != nil {
		if err := previous.Destroy(); err != nil {
			d.logger.Debug("destroying previous transport failed", "error", err)
		}
	}

	d.mu.Lock()
	if m := t.Model(); m != "" {
		d.model = m
	}
	if id := strings.TrimPrefix(t.DeviceID(), "miio:"); id != "" {
		d.deviceID = id
	}
	d.info = nil
	did := d.deviceID
	d.mu.Unlock()

	if d.generic != nil {
		if did == "" {
			d.logger.Error("device id is required for miot devices, set fan.device_id")
		}
		d.generic.SetDeviceID(did)
	}

	d.logger.Debug("transport attached, fetching properties")
	if _, err := d.adapter.Refresh(ctx); err != nil {
		d.logger.Debug("initial property fetch failed", "error", err)
		return nil
	}
	if d.profile.Capabilities.SupportsUseTime() {
		d.logger.Info("fan total use time", "minutes", d.UseTime())
	}
	return nil
}

// Detach unbinds and destroys the transport. The device keeps answering
// status queries with zero values.
func (d *Device) Detach() {
	d.attachMu.Lock()
	defer d.attachMu.Unlock()

	t := d.adapter.Unbind()
	if t == nil {
		return
	}
	if err := t.Destroy(); err != nil {
		d.logger.Debug("destroying transport failed", "error", err)
	}
}

// Refresh reads every declared property from the device.
func (d *Device) Refresh(ctx context.Context) (Snapshot, error) {
	return d.adapter.Refresh(ctx)
}

// Properties returns the last snapshot, empty when not connected.
func (d *Device) Properties() Snapshot {
	return d.adapter.Properties()
}

// Reading returns one cached property with its source.
func (d *Device) Reading(name string) (Reading, bool) {
	return d.adapter.Reading(name)
}

// SetUpdateHandler sets the single handler notified after local writes.
// Setting it again replaces the previous handler.
func (d *Device) SetUpdateHandler(h UpdateHandler) {
	d.adapter.SetUpdateHandler(h)
}

// Connected reports whether a transport is attached.
func (d *Device) Connected() bool {
	return d.adapter.Connected()
}

// DirectMethod returns the direct-method adapter, or nil on MIoT models.
func (d *Device) DirectMethod() *DirectMethodAdapter { return d.direct }

// GenericProperty returns the generic-property adapter, or nil on miIO models.
func (d *Device) GenericProperty() *GenericPropertyAdapter { return d.generic }

// Info fetches miIO.info from the device and caches it.
func (d *Device) Info(ctx context.Context) (miio.Info, error) {
	t := d.adapter.Transport()
	if t == nil {
		return miio.Info{}, ErrNotConnected
	}

	raw, err := t.Call(ctx, "miIO.info", nil, miio.CallOptions{})
	if err != nil {
		d.logger.Debug("could not retrieve device info", "error", err)
		return miio.Info{}, err
	}
	var info miio.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return miio.Info{}, fmt.Errorf("%w: %w", miio.ErrUnexpectedResponse, err)
	}

	d.mu.Lock()
	d.info = &info
	d.mu.Unlock()
	return info, nil
}

// CachedInfo returns the last Info result, if any.
func (d *Device) CachedInfo() (miio.Info, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.info == nil {
		return miio.Info{}, false
	}
	return *d.info, true
}

// Name returns the display name.
func (d *Device) Name() string { return d.name }

// Model returns the transport's model once attached, the configured or
// cached model before that.
func (d *Device) Model() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model
}

// DeviceID returns the device id without the "miio:" prefix.
func (d *Device) DeviceID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.deviceID
}

// Family returns the profile family name, e.g. "smartmi-miio".
func (d *Device) Family() string { return d.profile.Family }

// Protocol returns the RPC dialect of the model.
func (d *Device) Protocol() Protocol { return d.profile.Protocol }

// IsMiio reports whether the device speaks the direct-method dialect.
func (d *Device) IsMiio() bool { return d.profile.Protocol == ProtocolMiio }

// IsMiot reports whether the device speaks the generic-property dialect.
func (d *Device) IsMiot() bool { return d.profile.Protocol == ProtocolMiot }

// IsDmakerFan reports whether the model is a Dmaker fan.
func (d *Device) IsDmakerFan() bool { return strings.Contains(d.Model(), "dmaker") }

// IsSmartmiFan reports whether the model is a Smartmi fan.
func (d *Device) IsSmartmiFan() bool { return strings.Contains(d.Model(), "zhimi") }

// Capabilities returns the declared capabilities.
func (d *Device) Capabilities() Capabilities { return d.profile.Capabilities }

// fieldLogger appends fixed key-value pairs to every line.
type fieldLogger struct {
	next   Logger
	fields []any
}

func (l fieldLogger) with(args []any) []any {
	out := make([]any, 0, len(args)+len(l.fields))
	out = append(out, args...)
	return append(out, l.fields...)
}

func (l fieldLogger) Debug(msg string, args ...any) { l.next.Debug(msg, l.with(args)...) }
func (l fieldLogger) Info(msg string, args ...any)  { l.next.Info(msg, l.with(args)...) }
func (l fieldLogger) Warn(msg string, args ...any)  { l.next.Warn(msg, l.with(args)...) }
func (l fieldLogger) Error(msg string, args ...any) { l.next.Error(msg, l.with(args)...) }
