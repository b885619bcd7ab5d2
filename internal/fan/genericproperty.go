package fan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/nerrad567/gray-logic-fan/internal/miio"
)

// address is a declared (siid, piid) pair. The did is filled in per call.
type address struct {
	siid int
	piid int
}

// GenericPropertyAdapter drives MIoT devices, where every property and
// command is addressed by (did, siid, piid).
//
// Declarations are kept in insertion order: a batched get_properties result
// is matched back to names by index.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The update handler is called without internal locks held.
type GenericPropertyAdapter struct {
	logger Logger
	now    func() time.Time

	mu       sync.RWMutex
	did      string
	t        miio.Transport
	props    *orderedmap.OrderedMap[string, address]
	commands *orderedmap.OrderedMap[string, address]
	cache    map[string]Reading
	onUpdate UpdateHandler
}

// NewGenericPropertyAdapter creates an adapter for the device id did.
func NewGenericPropertyAdapter(did string, logger Logger) *GenericPropertyAdapter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &GenericPropertyAdapter{
		logger:   logger,
		now:      time.Now,
		did:      did,
		props:    orderedmap.New[string, address](),
		commands: orderedmap.New[string, address](),
		cache:    make(map[string]Reading),
	}
}

// Protocol returns ProtocolMiot.
func (a *GenericPropertyAdapter) Protocol() Protocol { return ProtocolMiot }

// DeclareProperty registers a readable and writable property and sets its
// cached value to 0. A missing name or index is logged and ignored.
func (a *GenericPropertyAdapter) DeclareProperty(name string, siid, piid int) {
	if name == "" || siid <= 0 || piid <= 0 {
		a.logger.Warn("cannot declare property, missing name or index",
			"property", name, "siid", siid, "piid", piid)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.props.Set(name, address{siid: siid, piid: piid})
	a.cache[name] = Reading{Value: 0, Source: Confirmed}
}

// DeclareCommand registers a write-only address. A missing name or index is
// logged and ignored.
func (a *GenericPropertyAdapter) DeclareCommand(name string, siid, piid int) {
	if name == "" || siid <= 0 || piid <= 0 {
		a.logger.Warn("cannot declare command, missing name or index",
			"command", name, "siid", siid, "piid", piid)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands.Set(name, address{siid: siid, piid: piid})
}

// PropertyNames returns the declared property names in declaration order.
func (a *GenericPropertyAdapter) PropertyNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, a.props.Len())
	for p := a.props.Oldest(); p != nil; p = p.Next() {
		names = append(names, p.Key)
	}
	return names
}

// SetDeviceID sets the did used in request addresses.
func (a *GenericPropertyAdapter) SetDeviceID(did string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.did = did
}

// Bind attaches t. Binding the transport that is already attached does nothing.
func (a *GenericPropertyAdapter) Bind(t miio.Transport) (miio.Transport, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t == a.t {
		return nil, false
	}
	previous := a.t
	a.t = t
	return previous, true
}

// Unbind detaches the transport. Cached values are kept for the next bind.
func (a *GenericPropertyAdapter) Unbind() miio.Transport {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.t
	a.t = nil
	return t
}

// Transport returns the bound transport, or nil.
func (a *GenericPropertyAdapter) Transport() miio.Transport {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.t
}

// Connected reports whether a transport is bound.
func (a *GenericPropertyAdapter) Connected() bool {
	return a.Transport() != nil
}

// SetUpdateHandler replaces the handler notified after local writes.
func (a *GenericPropertyAdapter) SetUpdateHandler(h UpdateHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onUpdate = h
}

// Properties returns the cached values, empty when not connected.
func (a *GenericPropertyAdapter) Properties() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.propertiesLocked()
}

func (a *GenericPropertyAdapter) propertiesLocked() Snapshot {
	snap := Snapshot{}
	if a.t == nil {
		return snap
	}
	for n, r := range a.cache {
		snap[n] = r.Value
	}
	return snap
}

// Reading returns one cached value with its source.
func (a *GenericPropertyAdapter) Reading(name string) (Reading, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.t == nil {
		return Reading{}, false
	}
	r, ok := a.cache[name]
	return r, ok
}

// Refresh is GetAllProperties returning the full merged snapshot.
func (a *GenericPropertyAdapter) Refresh(ctx context.Context) (Snapshot, error) {
	if _, err := a.GetAllProperties(ctx); err != nil {
		return nil, err
	}
	return a.Properties(), nil
}

// GetAllProperties reads every declared property in one get_properties call.
//
// Only entries the device reports with code 0 update the cache; failed
// entries keep their previous value.
//
// Returns:
//   - Snapshot: The entries accepted from this read
//   - error: ErrNotConnected, or the transport or decode error
func (a *GenericPropertyAdapter) GetAllProperties(ctx context.Context) (Snapshot, error) {
	a.mu.RLock()
	t := a.t
	names := make([]string, 0, a.props.Len())
	params := make([]miio.PropertyAddress, 0, a.props.Len())
	for p := a.props.Oldest(); p != nil; p = p.Next() {
		names = append(names, p.Key)
		params = append(params, miio.PropertyAddress{DID: a.did, SIID: p.Value.siid, PIID: p.Value.piid})
	}
	a.mu.RUnlock()

	if t == nil {
		return nil, ErrNotConnected
	}
	if len(params) == 0 {
		return Snapshot{}, nil
	}

	results, err := callProperties(ctx, t, "get_properties", params)
	if err != nil {
		return nil, err
	}
	return a.accept(t, names, results), nil
}

// RequestProperty reads a single declared property.
func (a *GenericPropertyAdapter) RequestProperty(ctx context.Context, name string) (Snapshot, error) {
	a.mu.RLock()
	t := a.t
	addr, ok := a.props.Get(name)
	did := a.did
	a.mu.RUnlock()

	if t == nil {
		return nil, ErrNotConnected
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}

	results, err := callProperties(ctx, t, "get_properties",
		[]miio.PropertyAddress{{DID: did, SIID: addr.siid, PIID: addr.piid}})
	if err != nil {
		a.logger.Debug("property request failed", "property", name, "error", err)
		return nil, err
	}
	got := a.accept(t, []string{name}, results)
	a.notify()
	return got, nil
}

// accept stores successful entries, matching results to names by index.
func (a *GenericPropertyAdapter) accept(t miio.Transport, names []string, results []miio.PropertyResult) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	got := Snapshot{}
	if a.t != t {
		return got
	}
	now := a.now()
	for i, r := range results {
		if i >= len(names) {
			break
		}
		if !r.OK() {
			a.logger.Debug("property read rejected", "property", names[i], "code", r.Code)
			continue
		}
		a.cache[names[i]] = Reading{Value: r.Value, Source: Confirmed, UpdatedAt: now}
		got[names[i]] = r.Value
	}
	return got
}

// SetProperty writes one property.
//
// The value is cached as Predicted and the update handler notified before
// the set_properties call is issued. On success the value becomes Confirmed;
// on failure the error is logged and the prediction stays until the next poll.
//
// Returns:
//   - error: ErrNotConnected or ErrUnknownProperty; transport errors are swallowed
func (a *GenericPropertyAdapter) SetProperty(ctx context.Context, name string, value any) error {
	a.mu.Lock()
	t := a.t
	addr, ok := a.props.Get(name)
	did := a.did
	if t == nil {
		a.mu.Unlock()
		return ErrNotConnected
	}
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	a.cache[name] = Reading{Value: value, Source: Predicted, UpdatedAt: a.now()}
	a.mu.Unlock()
	a.notify()

	results, err := callProperties(ctx, t, "set_properties",
		[]miio.PropertyAddress{{DID: did, SIID: addr.siid, PIID: addr.piid, Value: value}})
	if err == nil && len(results) > 0 && !results[0].OK() {
		err = &miio.RPCError{Code: results[0].Code, Message: "set_properties rejected"}
	}
	if err != nil {
		a.logger.Debug("set property failed", "property", name, "value", value, "error", err)
		return nil
	}
	a.logger.Debug("property set", "property", name, "value", value)

	a.mu.Lock()
	if r, ok := a.cache[name]; ok && a.t == t && r.Source == Predicted && sameValue(r.Value, value) {
		a.cache[name] = Reading{Value: value, Source: Confirmed, UpdatedAt: a.now()}
	}
	a.mu.Unlock()
	a.notify()
	return nil
}

// SendCommand writes value to a command address. The cache is not touched.
//
// Returns:
//   - error: ErrNotConnected or ErrUnknownProperty; transport errors are swallowed
func (a *GenericPropertyAdapter) SendCommand(ctx context.Context, name string, value any) error {
	a.mu.RLock()
	t := a.t
	addr, ok := a.commands.Get(name)
	did := a.did
	a.mu.RUnlock()

	if t == nil {
		return ErrNotConnected
	}
	if !ok {
		return fmt.Errorf("%w: command %s", ErrUnknownProperty, name)
	}

	if _, err := callProperties(ctx, t, "set_properties",
		[]miio.PropertyAddress{{DID: did, SIID: addr.siid, PIID: addr.piid, Value: value}}); err != nil {
		a.logger.Debug("command failed", "command", name, "value", value, "error", err)
		return nil
	}
	a.logger.Debug("command sent", "command", name, "value", value)
	return nil
}

func (a *GenericPropertyAdapter) notify() {
	a.mu.RLock()
	h := a.onUpdate
	snap := a.propertiesLocked()
	a.mu.RUnlock()
	if h != nil {
		h(snap)
	}
}

// callProperties issues a get_properties or set_properties call and decodes
// the per-entry results.
func callProperties(ctx context.Context, t miio.Transport, method string, params []miio.PropertyAddress) ([]miio.PropertyResult, error) {
	raw, err := t.Call(ctx, method, params, miio.CallOptions{})
	if err != nil {
		return nil, err
	}
	var results []miio.PropertyResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", miio.ErrUnexpectedResponse, method, err)
	}
	return results, nil
}

var _ adapter = (*GenericPropertyAdapter)(nil)
