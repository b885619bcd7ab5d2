package fan

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/miio"
)

// DirectMethodAdapter drives miIO devices: commands are method calls and
// state lives in the transport's property snapshot.
//
// Predicted values are kept in an overlay on top of the transport snapshot
// until the next refresh of the same name.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The update handler is called without internal locks held.
type DirectMethodAdapter struct {
	names        []string
	refreshDelay time.Duration
	logger       Logger
	now          func() time.Time

	mu          sync.RWMutex
	t           miio.Transport
	predicted   map[string]Reading
	confirmedAt time.Time
	onUpdate    UpdateHandler
}

// NewDirectMethodAdapter creates an adapter that declares names on every
// transport it is bound to.
//
// Parameters:
//   - names: Property names read with get_prop, in declaration order
//   - refreshDelay: Pause between a command and its property refresh (0 = miio default)
//   - logger: Logger for swallowed transport errors (nil = silent)
func NewDirectMethodAdapter(names []string, refreshDelay time.Duration, logger Logger) *DirectMethodAdapter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &DirectMethodAdapter{
		names:        slices.Compact(slices.Clone(names)),
		refreshDelay: refreshDelay,
		logger:       logger,
		now:          time.Now,
		predicted:    make(map[string]Reading),
	}
}

// Protocol returns ProtocolMiio.
func (a *DirectMethodAdapter) Protocol() Protocol { return ProtocolMiio }

// Names returns the declared property names.
func (a *DirectMethodAdapter) Names() []string { return slices.Clone(a.names) }

// Bind attaches t and declares every property name on it. Binding the
// transport that is already attached does nothing.
func (a *DirectMethodAdapter) Bind(t miio.Transport) (miio.Transport, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t == a.t {
		return nil, false
	}
	previous := a.t
	a.t = t
	clear(a.predicted)
	a.confirmedAt = time.Time{}
	if t != nil {
		for _, n := range a.names {
			t.DeclareProperty(n)
		}
	}
	return previous, true
}

// Unbind detaches the transport and drops predictions.
func (a *DirectMethodAdapter) Unbind() miio.Transport {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.t
	a.t = nil
	clear(a.predicted)
	return t
}

// Transport returns the bound transport, or nil.
func (a *DirectMethodAdapter) Transport() miio.Transport {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.t
}

// Connected reports whether a transport is bound.
func (a *DirectMethodAdapter) Connected() bool {
	return a.Transport() != nil
}

// SetUpdateHandler replaces the handler notified after predictions and
// acknowledged commands.
func (a *DirectMethodAdapter) SetUpdateHandler(h UpdateHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onUpdate = h
}

// Properties returns the transport snapshot overlaid with predictions.
// It returns an empty snapshot when not connected.
func (a *DirectMethodAdapter) Properties() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.propertiesLocked()
}

func (a *DirectMethodAdapter) propertiesLocked() Snapshot {
	if a.t == nil {
		return Snapshot{}
	}
	snap := Snapshot(a.t.PropertySnapshot())
	if snap == nil {
		snap = Snapshot{}
	}
	for n, r := range a.predicted {
		snap[n] = r.Value
	}
	return snap
}

// Reading returns one value with its source.
func (a *DirectMethodAdapter) Reading(name string) (Reading, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.t == nil {
		return Reading{}, false
	}
	if r, ok := a.predicted[name]; ok {
		return r, true
	}
	v, ok := a.t.PropertySnapshot()[name]
	if !ok {
		return Reading{}, false
	}
	return Reading{Value: v, Source: Confirmed, UpdatedAt: a.confirmedAt}, true
}

// Predict writes expected values ahead of a command and notifies the update
// handler before returning, so the notification precedes the RPC.
// It does nothing when not connected.
func (a *DirectMethodAdapter) Predict(values map[string]any) {
	a.mu.Lock()
	if a.t == nil {
		a.mu.Unlock()
		return
	}
	now := a.now()
	for n, v := range values {
		a.predicted[n] = Reading{Value: v, Source: Predicted, UpdatedAt: now}
	}
	snap := a.propertiesLocked()
	h := a.onUpdate
	a.mu.Unlock()

	if h != nil {
		h(snap)
	}
}

// SendCommand invokes method with [value]. When refresh names are given the
// transport re-reads them after the refresh delay, replacing any prediction
// for those names. A name whose refresh fails keeps its prediction until the
// next successful read.
//
// Transport errors are logged and swallowed; the next poll reports the real
// state.
//
// Returns:
//   - error: ErrNotConnected when no transport is bound, nil otherwise
func (a *DirectMethodAdapter) SendCommand(ctx context.Context, method string, value any, refresh ...string) error {
	t := a.Transport()
	if t == nil {
		return ErrNotConnected
	}

	_, err := t.Call(ctx, method, []any{value}, miio.CallOptions{
		Refresh:      refresh,
		RefreshDelay: a.refreshDelay,
	})
	refreshed := refresh
	var refreshErr *miio.RefreshError
	switch {
	case errors.As(err, &refreshErr):
		a.logger.Debug("command executed, refresh failed", "method", method, "value", value,
			"missed", refreshErr.Missed, "error", refreshErr.Err)
		refreshed = refreshErr.Refreshed
	case err != nil:
		a.logger.Debug("command failed", "method", method, "value", value, "error", err)
		return nil
	default:
		a.logger.Debug("command executed", "method", method, "value", value)
	}

	if len(refreshed) == 0 {
		return nil
	}

	a.mu.Lock()
	if a.t != t {
		a.mu.Unlock()
		return nil
	}
	for _, n := range refreshed {
		delete(a.predicted, n)
	}
	a.confirmedAt = a.now()
	snap := a.propertiesLocked()
	h := a.onUpdate
	a.mu.Unlock()

	if h != nil {
		h(snap)
	}
	return nil
}

// Refresh re-reads every declared property and clears all predictions.
func (a *DirectMethodAdapter) Refresh(ctx context.Context) (Snapshot, error) {
	t := a.Transport()
	if t == nil {
		return nil, ErrNotConnected
	}

	fresh, err := t.RefreshDeclaredProperties(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.t != t {
		return Snapshot(maps.Clone(fresh)), nil
	}
	clear(a.predicted)
	a.confirmedAt = a.now()
	return a.propertiesLocked(), nil
}

var _ adapter = (*DirectMethodAdapter)(nil)
