package device

import (
	"context"
	"time"
)

// StateHistoryEntry is one polled snapshot of a fan.
//
// History is a local trail that survives InfluxDB being unavailable.
type StateHistoryEntry struct {
	ID        int64     `json:"id"`
	FanID     string    `json:"fan_id"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves snapshots.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordState stores a snapshot taken at the given time.
	RecordState(ctx context.Context, fanID string, state State, at time.Time) error

	// GetHistory returns up to limit entries, newest first. A non-zero since
	// excludes entries older than it.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - fanID: Fan identifier
	//   - since: Lower bound (zero for none)
	//   - limit: Maximum entries (implementation clamps bounds)
	//
	// Returns:
	//   - []StateHistoryEntry: Newest-first entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, fanID string, since time.Time, limit int) ([]StateHistoryEntry, error)

	// PruneHistory deletes entries older than now-olderThan and returns the
	// number removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
