// Package api implements the local HTTP REST API and WebSocket server of the
// fan bridge.
//
// This package provides:
//   - REST endpoints for fan identity, status, capabilities and history
//   - Command execution through the shared command dispatcher
//   - WebSocket hub for real-time status broadcasts
//   - Prometheus scrape endpoint
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API reads the fan through the controller and executes commands on the
// device directly, the same way the MQTT bridge does. The WebSocket hub is a
// controller listener, so clients see every poll without going through MQTT.
//
// # Graceful Degradation
//
// The server operates without MQTT, the database and InfluxDB. Reads that
// need the fan return 503 until the controller has connected.
package api
