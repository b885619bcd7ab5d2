package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/miio/miiotest"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	records map[string]*Record
	saves   int
	getErr  error
	saveErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{records: make(map[string]*Record)}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return rec.Clone(), nil
}

func (m *MockRepository) Save(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.records[r.ID] = r.Clone()
	m.saves++
	return nil
}

func (m *MockRepository) Touch(_ context.Context, id string, seen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrDeviceNotFound
	}
	rec.LastSeen = &seen
	return nil
}

func (m *MockRepository) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func testDevice(t *testing.T, model string) *fan.Device {
	t.Helper()
	d, err := fan.NewDevice(miiotest.NewFakeTransport(model, "123456"), "", "", "Bedroom Fan")
	if err != nil {
		t.Fatalf("fan.NewDevice() error = %v", err)
	}
	return d
}

func seedRecord() Record {
	return Record{ID: "fan-bedroom", Name: "Bedroom Fan", Address: "192.168.1.50"}
}

func TestRegistryLoadCreatesRecord(t *testing.T) {
	repo := NewMockRepository()
	reg := NewRegistry(repo, nil)

	rec, err := reg.Load(context.Background(), seedRecord())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.Model != "" {
		t.Errorf("Model = %q, want empty on first run", rec.Model)
	}
	if repo.saveCount() != 1 {
		t.Errorf("saves = %d, want 1", repo.saveCount())
	}
	if reg.Record() == nil {
		t.Error("Record() = nil after Load")
	}
}

func TestRegistryLoadReturnsCachedModel(t *testing.T) {
	repo := NewMockRepository()
	repo.records["fan-bedroom"] = &Record{
		ID: "fan-bedroom", Name: "Old Name", Address: "192.168.1.50",
		Model: "dmaker.fan.p5", CreatedAt: time.Now(),
	}
	reg := NewRegistry(repo, nil)

	rec, err := reg.Load(context.Background(), seedRecord())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.Model != "dmaker.fan.p5" {
		t.Errorf("Model = %q, want cached dmaker.fan.p5", rec.Model)
	}
	if rec.Name != "Bedroom Fan" {
		t.Errorf("Name = %q, want configured name", rec.Name)
	}
}

func TestRegistryLoadErrors(t *testing.T) {
	reg := NewRegistry(NewMockRepository(), nil)
	if _, err := reg.Load(context.Background(), Record{}); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("Load() error = %v, want ErrInvalidDevice", err)
	}

	repo := NewMockRepository()
	repo.getErr = errors.New("disk full")
	reg = NewRegistry(repo, nil)
	if _, err := reg.Load(context.Background(), seedRecord()); err == nil {
		t.Error("Load() expected repository error")
	}
}

func TestRegistryEventsBeforeLoadAreIgnored(t *testing.T) {
	repo := NewMockRepository()
	reg := NewRegistry(repo, nil)

	reg.DeviceReady(testDevice(t, "dmaker.fan.p5"))
	reg.PropertiesUpdated(fan.Snapshot{"power": true})

	if repo.saveCount() != 0 {
		t.Errorf("saves = %d, want 0", repo.saveCount())
	}
	if _, err := reg.History(context.Background(), time.Time{}, 0); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("History() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistryDeviceReadyCachesModel(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	reg := NewRegistry(repo, nil)
	ctx := context.Background()

	if _, err := reg.Load(ctx, seedRecord()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	d := testDevice(t, "zhimi.fan.za5")
	reg.DeviceReady(d)

	stored, err := repo.GetByID(ctx, "fan-bedroom")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Model != "zhimi.fan.za5" || stored.Family != "smartmi-dc" || stored.Protocol != "miot" {
		t.Errorf("stored = %+v", stored)
	}
	if stored.DeviceID != d.DeviceID() {
		t.Errorf("DeviceID = %q, want %q", stored.DeviceID, d.DeviceID())
	}

	// The next start sees the cached model.
	reloaded, err := NewRegistry(repo, nil).Load(ctx, seedRecord())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.Model != "zhimi.fan.za5" {
		t.Errorf("reloaded Model = %q", reloaded.Model)
	}
}

func TestRegistryDeviceReadyUnchangedSkipsSave(t *testing.T) {
	repo := NewMockRepository()
	reg := NewRegistry(repo, nil)
	if _, err := reg.Load(context.Background(), seedRecord()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	d := testDevice(t, "dmaker.fan.p5")
	reg.DeviceReady(d)
	reg.DeviceReady(d)

	if repo.saveCount() != 2 {
		t.Errorf("saves = %d, want 2 (load + first ready)", repo.saveCount())
	}
}

func TestRegistryConnectedStampsLastSeen(t *testing.T) {
	repo := NewMockRepository()
	reg := NewRegistry(repo, nil)
	if _, err := reg.Load(context.Background(), seedRecord()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	before := time.Now().Add(-time.Second)
	reg.Connected(testDevice(t, "dmaker.fan.p5"))

	rec := reg.Record()
	if rec.LastSeen == nil || rec.LastSeen.Before(before) {
		t.Errorf("LastSeen = %v, want after %v", rec.LastSeen, before)
	}
}

func TestRegistrySaveFailureKeepsMemoryRecord(t *testing.T) {
	repo := NewMockRepository()
	reg := NewRegistry(repo, nil)
	if _, err := reg.Load(context.Background(), seedRecord()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	repo.saveErr = errors.New("read-only filesystem")
	reg.DeviceReady(testDevice(t, "dmaker.fan.p9"))

	if got := reg.Record().Model; got != "dmaker.fan.p9" {
		t.Errorf("Model = %q, want dmaker.fan.p9", got)
	}
}

func TestRegistryRecordsHistory(t *testing.T) {
	db := setupTestDB(t)
	reg := NewRegistry(NewSQLiteRepository(db.DB), NewSQLiteStateHistoryRepository(db.DB))
	ctx := context.Background()

	if _, err := reg.Load(ctx, seedRecord()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	snap := fan.Snapshot{"power": "on", "speed_level": 40}
	reg.PropertiesUpdated(snap)
	snap["power"] = "off" // the stored copy must not change

	entries, err := reg.History(ctx, time.Time{}, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].State["power"] != "on" {
		t.Errorf("power = %v, want on", entries[0].State["power"])
	}
}

func TestRegistryHistoryDisabled(t *testing.T) {
	reg := NewRegistry(NewMockRepository(), nil)
	if _, err := reg.Load(context.Background(), seedRecord()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	reg.PropertiesUpdated(fan.Snapshot{"power": "on"})

	entries, err := reg.History(context.Background(), time.Time{}, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}

func TestRegistryRunPruner(t *testing.T) {
	db := setupTestDB(t)
	history := NewSQLiteStateHistoryRepository(db.DB)
	reg := NewRegistry(NewSQLiteRepository(db.DB), history)
	ctx := context.Background()

	if err := history.RecordState(ctx, "fan-bedroom", State{"old": true}, time.Now().Add(-72*time.Hour)); err != nil {
		t.Fatalf("RecordState() error = %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- reg.RunPruner(runCtx, 24*time.Hour, time.Hour) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := history.GetHistory(ctx, "fan-bedroom", time.Time{}, 0)
		if err != nil {
			t.Fatalf("GetHistory() error = %v", err)
		}
		if len(entries) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pruner did not delete old entry")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunPruner() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunPruner() did not return after cancel")
	}
}

func TestRegistryRunPrunerWithoutHistoryWaits(t *testing.T) {
	reg := NewRegistry(NewMockRepository(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := reg.RunPruner(ctx, time.Hour, time.Minute); err != nil {
		t.Errorf("RunPruner() error = %v", err)
	}
}
