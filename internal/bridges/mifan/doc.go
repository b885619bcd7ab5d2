// Package mifan bridges one Xiaomi-ecosystem fan to MQTT for Gray Logic.
//
// The bridge listens to the connection controller and translates its events
// into retained MQTT messages, and translates command messages back into
// fan.Device calls:
//
//	┌─────────────────┐          ┌─────────────────┐          ┌──────────┐
//	│   Gray Logic    │   MQTT   │   Fan Bridge    │  miIO    │   Fan    │
//	│      Core       │◄────────►│   (this pkg)    │◄────────►│ (UDP)    │
//	└─────────────────┘          └─────────────────┘          └──────────┘
//
// # Topics
//
// With protocol "fan" and the configured fan id:
//
//   - graylogic/capabilities/fan/{id}: model, capabilities and accepted commands (retained)
//   - graylogic/availability/fan/{id}: "online" or "offline" (retained)
//   - graylogic/state/fan/{id}: fan.Status, published on change (retained)
//   - graylogic/command/fan/{id}: inbound commands
//   - graylogic/ack/fan/{id}: command acknowledgements
//   - graylogic/health/fan: periodic HealthMessage (retained)
//
// # Commands
//
// A command message names one of the command package's commands:
//
//	{"id": "c1", "command": "set_fan_level", "parameters": {"level": 2}}
//
// The id is generated when absent. Every command is answered with an ack
// whose status is "accepted" or "failed" with an error code.
package mifan
