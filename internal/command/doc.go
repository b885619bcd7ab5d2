// Package command maps named fan commands with loosely typed parameters onto
// fan.Device methods.
//
// MQTT command messages and the HTTP API share one Dispatcher, so both
// surfaces accept the same names and honour the same feature toggles:
//
//	d := command.NewDispatcher(cfg.Fan.Features)
//	err := d.Execute(ctx, device, command.SetFanLevel, map[string]any{"level": 2})
//
// Parameters arrive as decoded JSON, so numbers are float64. Integer
// parameters accept any JSON number and are truncated.
package command
