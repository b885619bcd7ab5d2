// Package database provides SQLite connectivity for the fan bridge.
//
// The bridge keeps a small local database: the model seen on the last
// successful connect (so capabilities are known before the fan answers) and
// a rolling history of polled snapshots.
//
// This package manages:
//   - The connection, with WAL mode and a busy timeout
//   - Versioned schema migrations read from an fs.FS
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
