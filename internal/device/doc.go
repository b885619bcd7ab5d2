// Package device persists what the fan bridge knows about its fan.
//
// Two tables back it:
//   - fan_devices: the identity reported on the last successful connect.
//     Its model seeds the controller on startup so the device and its
//     capabilities exist before the fan answers.
//   - fan_state_history: one JSON snapshot per poll, pruned by age.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	history := device.NewSQLiteStateHistoryRepository(db.DB)
//	registry := device.NewRegistry(repo, history)
//	registry.SetLogger(log)
//
//	rec, err := registry.Load(ctx, device.Record{ID: cfg.Fan.ID, Name: cfg.Fan.Name, Address: cfg.Fan.Address})
//	if err != nil {
//	    return err
//	}
//	ctrl, _ := controller.New(controller.Options{Model: rec.Model, ...})
//	ctrl.AddListener(registry)
//
// # Thread Safety
//
// Registry and the SQLite repositories are safe for concurrent use.
package device
