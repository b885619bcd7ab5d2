// Package logging is the bridge's structured logger: logrus underneath, a
// key-value call style on top.
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("fan connected", "model", "zhimi.fan.za4", "device_id", did)
//	log.With("component", "miio").Warn("handshake retry", "attempt", 2)
//
// Pairs become logrus fields; error values are logged as their message.
// The configuration lives under logging: in config.yaml (level, format,
// output). Device tokens must never be logged.
package logging
