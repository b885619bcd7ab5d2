// Package miiotest provides in-memory fakes of the miio transport for tests.
//
// FakeTransport answers get_prop, get_properties and set_properties from an
// in-memory device model. FakeDialer hands out queued results and blocks
// once the queue is empty, so connection loops can be driven step by step.
package miiotest

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-fan/internal/miio"
)

// Call records one invocation of FakeTransport.Call.
type Call struct {
	Method  string
	Params  any
	Refresh []string
}

type miotKey struct{ siid, piid int }

// FakeTransport is an in-memory miio.Transport.
type FakeTransport struct {
	model    string
	deviceID string

	mu       sync.Mutex
	declared []string
	snapshot map[string]any
	device   map[string]any
	miot     map[miotKey]any
	calls    []Call
	err      error
	refresh  error
	hook     func(method string, params any)

	destroyed atomic.Int32
}

// NewFakeTransport creates a fake reporting the given model and device id.
func NewFakeTransport(model, deviceID string) *FakeTransport {
	return &FakeTransport{
		model:    model,
		deviceID: deviceID,
		snapshot: make(map[string]any),
		device:   make(map[string]any),
		miot:     make(map[miotKey]any),
	}
}

// SetProperty sets a direct-method value on the simulated device. It becomes
// visible in the snapshot after the next refresh.
func (f *FakeTransport) SetProperty(name string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.device[name] = value
}

// SetMiotProperty sets a MIoT property value on the simulated device.
func (f *FakeTransport) SetMiotProperty(siid, piid int, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.miot[miotKey{siid, piid}] = value
}

// MiotProperty returns the simulated device value at siid/piid.
func (f *FakeTransport) MiotProperty(siid, piid int) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.miot[miotKey{siid, piid}]
	return v, ok
}

// SetError makes every subsequent call and refresh fail with err.
// A nil err restores normal behaviour.
func (f *FakeTransport) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// SetRefreshError makes the post-call refresh of every subsequent Call fail
// with err while the call itself is still acknowledged. The snapshot keeps
// its previous values. A nil err restores normal behaviour.
func (f *FakeTransport) SetRefreshError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh = err
}

// SetHook installs a function run at the start of every Call, before the
// simulated device is touched.
func (f *FakeTransport) SetHook(hook func(method string, params any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

// Calls returns the calls made so far.
func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallsTo returns the calls made to one method.
func (f *FakeTransport) CallsTo(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Declared returns the declared direct-method property names.
func (f *FakeTransport) Declared() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.declared)
}

// Destroyed returns how many times Destroy was called.
func (f *FakeTransport) Destroyed() int {
	return int(f.destroyed.Load())
}

// Call implements miio.Transport.
func (f *FakeTransport) Call(ctx context.Context, method string, params any, opts miio.CallOptions) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Params: params, Refresh: slices.Clone(opts.Refresh)})
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(method, params)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	var result any
	switch method {
	case "miIO.info":
		result = miio.Info{Model: f.model}
	case "get_prop":
		names, err := decodeNames(params)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(names))
		for i, n := range names {
			values[i] = f.device[n]
		}
		result = values
	case "get_properties", "set_properties":
		addrs, err := decodeAddresses(params)
		if err != nil {
			return nil, err
		}
		results := make([]miio.PropertyResult, len(addrs))
		for i, a := range addrs {
			key := miotKey{a.SIID, a.PIID}
			r := miio.PropertyResult{DID: a.DID, SIID: a.SIID, PIID: a.PIID}
			if method == "set_properties" {
				f.miot[key] = a.Value
			} else if v, ok := f.miot[key]; ok {
				r.Value = v
			} else {
				r.Code = -4001
			}
			results[i] = r
		}
		result = results
	default:
		result = []string{"ok"}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	if len(opts.Refresh) > 0 && f.refresh != nil {
		return raw, &miio.RefreshError{Missed: slices.Clone(opts.Refresh), Err: f.refresh}
	}
	for _, n := range opts.Refresh {
		f.snapshot[n] = f.device[n]
	}
	return raw, nil
}

// DeclareProperty implements miio.Transport.
func (f *FakeTransport) DeclareProperty(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.Contains(f.declared, name) {
		f.declared = append(f.declared, name)
	}
}

// PropertySnapshot implements miio.Transport.
func (f *FakeTransport) PropertySnapshot() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.snapshot)
}

// RefreshDeclaredProperties implements miio.Transport.
func (f *FakeTransport) RefreshDeclaredProperties(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, n := range f.declared {
		f.snapshot[n] = f.device[n]
	}
	return maps.Clone(f.snapshot), nil
}

// Model implements miio.Transport.
func (f *FakeTransport) Model() string { return f.model }

// DeviceID implements miio.Transport.
func (f *FakeTransport) DeviceID() string { return f.deviceID }

// Destroy implements miio.Transport.
func (f *FakeTransport) Destroy() error {
	f.destroyed.Add(1)
	return nil
}

// decodeNames round-trips params through JSON so callers may pass any
// list-of-strings shape.
func decodeNames(params any) ([]string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("miiotest: get_prop params: %w", err)
	}
	return names, nil
}

func decodeAddresses(params any) ([]miio.PropertyAddress, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var addrs []miio.PropertyAddress
	if err := json.Unmarshal(raw, &addrs); err != nil {
		return nil, fmt.Errorf("miiotest: property params: %w", err)
	}
	return addrs, nil
}

// DialResult is one queued FakeDialer outcome.
type DialResult struct {
	Transport miio.Transport
	Err       error
}

// FakeDialer is a miio.Dialer that returns queued results in order. Once the
// queue is empty, Dial blocks until its context is cancelled.
type FakeDialer struct {
	mu    sync.Mutex
	queue []DialResult
	dials atomic.Int32
}

// Push queues dial results.
func (d *FakeDialer) Push(results ...DialResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, results...)
}

// Dials returns how many times Dial was called.
func (d *FakeDialer) Dials() int {
	return int(d.dials.Load())
}

// Dial implements miio.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, _, _ string) (miio.Transport, error) {
	d.dials.Add(1)

	d.mu.Lock()
	if len(d.queue) > 0 {
		r := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()
		return r.Transport, r.Err
	}
	d.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

var (
	_ miio.Transport = (*FakeTransport)(nil)
	_ miio.Dialer    = (*FakeDialer)(nil)
)
