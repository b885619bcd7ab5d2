package device

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// writeTimeout bounds each repository write made from a controller event.
const writeTimeout = 5 * time.Second

// Registry keeps the cached record of the bridged fan and its state history.
//
// It is a controller listener: DeviceReady and Connected update the model
// cache, PropertiesUpdated appends to history. Load must be called first;
// events arriving before it are ignored.
//
// Thread Safety: All methods are safe for concurrent use.
type Registry struct {
	repo    Repository
	history StateHistoryRepository // nil disables history

	mu     sync.RWMutex
	record *Record

	logger Logger
}

// NewRegistry creates a registry. history may be nil.
func NewRegistry(repo Repository, history StateHistoryRepository) *Registry {
	return &Registry{
		repo:    repo,
		history: history,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Load reads the cached record for seed.ID, creating it from seed when none
// exists. Name and Address always come from seed, since configuration wins
// over the cache.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - seed: Record built from configuration (ID required)
//
// Returns:
//   - *Record: Copy of the loaded record; Model is the cached model, if any
//   - error: ErrInvalidDevice or a repository error
func (r *Registry) Load(ctx context.Context, seed Record) (*Record, error) {
	if seed.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}

	rec, err := r.repo.GetByID(ctx, seed.ID)
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		rec = seed.Clone()
	case err != nil:
		return nil, fmt.Errorf("loading fan record: %w", err)
	}

	changed := rec.Name != seed.Name || rec.Address != seed.Address || rec.CreatedAt.IsZero()
	rec.Name = seed.Name
	rec.Address = seed.Address
	if rec.DeviceID == "" {
		rec.DeviceID = seed.DeviceID
	}
	if changed {
		if err := r.repo.Save(ctx, rec); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.record = rec
	logger := r.logger
	r.mu.Unlock()

	logger.Info("fan record loaded", "id", rec.ID, "model", rec.Model)
	return rec.Clone(), nil
}

// Record returns a copy of the current record, or nil before Load.
func (r *Registry) Record() *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.record.Clone()
}

// History returns recent snapshots of the bridged fan, newest first.
func (r *Registry) History(ctx context.Context, since time.Time, limit int) ([]StateHistoryEntry, error) {
	rec := r.Record()
	if rec == nil {
		return nil, ErrDeviceNotFound
	}
	if r.history == nil {
		return []StateHistoryEntry{}, nil
	}
	return r.history.GetHistory(ctx, rec.ID, since, limit)
}

// DeviceReady caches the model the controller resolved.
func (r *Registry) DeviceReady(d *fan.Device) {
	r.update("device ready", func(rec *Record) bool {
		changed := rec.Model != d.Model() || rec.Family != d.Family() || rec.Protocol != string(d.Protocol())
		rec.Model = d.Model()
		rec.Family = d.Family()
		rec.Protocol = string(d.Protocol())
		if id := d.DeviceID(); id != "" && id != rec.DeviceID {
			rec.DeviceID = id
			changed = true
		}
		return changed
	})
}

// Connected stamps LastSeen and the firmware version when known.
func (r *Registry) Connected(d *fan.Device) {
	r.update("connected", func(rec *Record) bool {
		now := time.Now().UTC()
		rec.LastSeen = &now
		if info, ok := d.CachedInfo(); ok && info.FirmwareVersion != "" {
			rec.Firmware = info.FirmwareVersion
		}
		return true
	})
}

// Disconnected is a no-op; LastSeen already marks the last good connect.
func (r *Registry) Disconnected() {}

// PropertiesUpdated appends the snapshot to history.
func (r *Registry) PropertiesUpdated(snap fan.Snapshot) {
	rec := r.Record()
	if rec == nil || r.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.history.RecordState(ctx, rec.ID, State(maps.Clone(snap)), time.Now()); err != nil {
		r.log().Warn("failed to record state history", "id", rec.ID, "error", err)
	}
}

// RunPruner deletes history older than retention every interval until ctx
// is cancelled. It returns nil on cancellation.
func (r *Registry) RunPruner(ctx context.Context, retention, interval time.Duration) error {
	if r.history == nil || retention <= 0 {
		<-ctx.Done()
		return nil
	}
	if interval <= 0 {
		interval = time.Hour
	}

	prune := func() {
		n, err := r.history.PruneHistory(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			r.log().Warn("failed to prune state history", "error", err)
		case n > 0:
			r.log().Debug("pruned state history", "deleted", n)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prune()
		}
	}
}

// update applies fn to a copy of the record and persists it when fn
// reports a change.
func (r *Registry) update(event string, fn func(*Record) bool) {
	r.mu.Lock()
	if r.record == nil {
		r.mu.Unlock()
		return
	}
	rec := r.record.Clone()
	if !fn(rec) {
		r.mu.Unlock()
		return
	}
	r.record = rec
	logger := r.logger
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.Save(ctx, rec.Clone()); err != nil {
		logger.Warn("failed to save fan record", "event", event, "id", rec.ID, "error", err)
	}
}

func (r *Registry) log() Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}
