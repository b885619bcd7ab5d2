package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// SQLiteStateHistoryRepository implements StateHistoryRepository on the
// fan_state_history table. Timestamps are stored as Unix milliseconds.
type SQLiteStateHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteStateHistoryRepository creates a history repository.
func NewSQLiteStateHistoryRepository(db *sql.DB) *SQLiteStateHistoryRepository {
	return &SQLiteStateHistoryRepository{db: db}
}

// RecordState inserts a snapshot.
func (r *SQLiteStateHistoryRepository) RecordState(ctx context.Context, fanID string, state State, at time.Time) error {
	if fanID == "" {
		return fmt.Errorf("%w: fan id is required", ErrInvalidDevice)
	}
	if state == nil {
		state = State{}
	}
	if at.IsZero() {
		at = time.Now()
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO fan_state_history (fan_id, state, created_at) VALUES (?, ?, ?)",
		fanID, string(stateJSON), at.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// GetHistory returns entries newest first (default 50, max 1000).
func (r *SQLiteStateHistoryRepository) GetHistory(ctx context.Context, fanID string, since time.Time, limit int) ([]StateHistoryEntry, error) {
	if fanID == "" {
		return nil, fmt.Errorf("%w: fan id is required", ErrInvalidDevice)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	var sinceMS int64
	if !since.IsZero() {
		sinceMS = since.UTC().UnixMilli()
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, fan_id, state, created_at
		 FROM fan_state_history
		 WHERE fan_id = ? AND created_at >= ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		fanID, sinceMS, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0)
	for rows.Next() {
		var (
			entry     StateHistoryEntry
			stateJSON string
			createdMS int64
		)
		if err := rows.Scan(&entry.ID, &entry.FanID, &stateJSON, &createdMS); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &entry.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
		entry.CreatedAt = time.UnixMilli(createdMS).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes entries older than the retention window.
func (r *SQLiteStateHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := time.Now().UTC().Add(-olderThan).UnixMilli()
	result, err := r.db.ExecContext(ctx, "DELETE FROM fan_state_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
