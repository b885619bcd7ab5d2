package database

import (
	"context"
	"embed"
	"io/fs"
	"testing"
	"testing/fstest"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

func testMigrations(t *testing.T) fs.FS {
	t.Helper()
	sub, err := fs.Sub(testMigrationsFS, "testdata")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	return sub
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	migrations := testMigrations(t)

	if err := db.Migrate(ctx, migrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='test_readings'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("table test_readings not created: %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx, migrations)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || applied[0].Version != "20260301_090000" {
		t.Errorf("applied = %+v, want one 20260301_090000", applied)
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	// Idempotent.
	if err := db.Migrate(ctx, migrations); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(context.Background(), nil); err != nil {
		t.Fatalf("Migrate(nil) error = %v", err)
	}
	if err := db.Migrate(context.Background(), fstest.MapFS{}); err != nil {
		t.Fatalf("Migrate(empty) error = %v", err)
	}
}

func TestMigrationStatusBeforeMigrate(t *testing.T) {
	db := openTestDB(t)

	applied, pending, err := db.MigrationStatus(context.Background(), testMigrations(t))
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d, want 0", len(applied))
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].Name != "create_readings" || pending[0].DownSQL == "" {
		t.Errorf("pending[0] = %+v", pending[0])
	}
}

func TestMigrateOrderAndFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"20260302_000000_second.up.sql": {Data: []byte("CREATE TABLE second (id INTEGER REFERENCES first(id));")},
		"20260301_000000_first.up.sql":  {Data: []byte("CREATE TABLE first (id INTEGER PRIMARY KEY);")},
		"20260303_000000_broken.up.sql": {Data: []byte("CREATE TABL broken;")},
		"README.md":                     {Data: []byte("ignored")},
	}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || applied[0].Version != "20260301_000000" || applied[1].Version != "20260302_000000" {
		t.Errorf("applied = %+v", applied)
	}
	if len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestMigrateDownOnly(t *testing.T) {
	db := openTestDB(t)

	fsys := fstest.MapFS{
		"20260301_000000_orphan.down.sql": {Data: []byte("DROP TABLE orphan;")},
	}
	if err := db.Migrate(context.Background(), fsys); err == nil {
		t.Error("Migrate() expected error for a down migration without up")
	}
}

func TestParseMigrationFile(t *testing.T) {
	tests := []struct {
		filename string
		want     migrationFile
		wantOk   bool
	}{
		{"20260301_090000_fan_devices.up.sql", migrationFile{"20260301_090000", "fan_devices", true}, true},
		{"20260301_090100_fan_state_history.down.sql", migrationFile{"20260301_090100", "fan_state_history", false}, true},
		{"readme.txt", migrationFile{}, false},
		{"20260301_090000_fan_devices.sql", migrationFile{}, false},
		{"invalid.up.sql", migrationFile{}, false},
		{"2026_0301_fan.up.sql", migrationFile{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := parseMigrationFile(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if got != tt.want {
				t.Errorf("parseMigrationFile() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
