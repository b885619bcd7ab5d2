package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists fan records. Implementations must be safe for
// concurrent use.
type Repository interface {
	// GetByID returns the record, or ErrDeviceNotFound.
	GetByID(ctx context.Context, id string) (*Record, error)

	// Save inserts or replaces the record. CreatedAt is preserved on update.
	Save(ctx context.Context, r *Record) error

	// Touch sets LastSeen. Returns ErrDeviceNotFound for unknown IDs.
	Touch(ctx context.Context, id string, seen time.Time) error
}

// SQLiteRepository implements Repository on the fan_devices table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `id, name, address, device_id, model, family, protocol, firmware,
	last_seen, created_at, updated_at`

// GetByID returns the record with the given ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM fan_devices WHERE id = ?`, id)

	var (
		rec       Record
		lastSeen  sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Address, &rec.DeviceID, &rec.Model,
		&rec.Family, &rec.Protocol, &rec.Firmware, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying fan device: %w", err)
	}

	if rec.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	if lastSeen.Valid && lastSeen.String != "" {
		t, err := parseTimestamp(lastSeen.String)
		if err != nil {
			return nil, err
		}
		rec.LastSeen = &t
	}
	return &rec, nil
}

// Save upserts the record and stamps UpdatedAt (and CreatedAt when new).
func (r *SQLiteRepository) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	var lastSeen any
	if rec.LastSeen != nil {
		lastSeen = rec.LastSeen.UTC().Format(time.RFC3339Nano)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fan_devices (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			device_id = excluded.device_id,
			model = excluded.model,
			family = excluded.family,
			protocol = excluded.protocol,
			firmware = excluded.firmware,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Name, rec.Address, rec.DeviceID, rec.Model, rec.Family, rec.Protocol,
		rec.Firmware, lastSeen,
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving fan device: %w", err)
	}
	return nil
}

// Touch records a successful connect.
func (r *SQLiteRepository) Touch(ctx context.Context, id string, seen time.Time) error {
	ts := seen.UTC().Format(time.RFC3339Nano)
	result, err := r.db.ExecContext(ctx,
		"UPDATE fan_devices SET last_seen = ?, updated_at = ? WHERE id = ?", ts, ts, id)
	if err != nil {
		return fmt.Errorf("updating last seen: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}
