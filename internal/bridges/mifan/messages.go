package mifan

import (
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/controller"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/mqtt"
)

// MQTT message types exchanged between Gray Logic Core and the fan bridge.

// CommandMessage is sent from Core to the bridge to control the fan.
// Topic: graylogic/command/fan/{id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Generated when empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued.
	Timestamp time.Time `json:"timestamp,omitzero"`

	// DeviceID is the Gray Logic fan id. Empty means the bridged fan.
	DeviceID string `json:"device_id,omitempty"`

	// Command is the command name (e.g., "turn_on", "set_fan_level").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	//   {"level": 2} for set_fan_level
	//   {"direction": "left"} for move
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("api", "automation", ...).
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgement status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was sent to the fan.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the fan did not answer in time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from the bridge to Core for every command.
// Topic: graylogic/ack/fan/{id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotSupported      = "NOT_SUPPORTED"
	ErrCodeFeatureDisabled   = "FEATURE_DISABLED"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// Availability values.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// AvailabilityMessage reports whether the fan is reachable.
// Topic: graylogic/availability/fan/{id}
// QoS: 1, Retained: Yes
type AvailabilityMessage struct {
	DeviceID  string    `json:"device_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// CapabilitiesMessage describes the fan model and what it accepts.
// Topic: graylogic/capabilities/fan/{id}
// QoS: 1, Retained: Yes
type CapabilitiesMessage struct {
	DeviceID     string           `json:"device_id"`
	Name         string           `json:"name"`
	Model        string           `json:"model"`
	Family       string           `json:"family"`
	Protocol     fan.Protocol     `json:"protocol"`
	Capabilities fan.Capabilities `json:"capabilities"`

	// Commands lists the command names the bridge accepts for this fan.
	Commands  []string  `json:"commands"`
	Timestamp time.Time `json:"timestamp"`
}

// StateMessage is sent when the fan state changes.
// Topic: graylogic/state/fan/{id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string       `json:"device_id"`
	Timestamp time.Time    `json:"timestamp"`
	Model     string       `json:"model"`
	State     fan.Status   `json:"state"`
	Protocol  string       `json:"protocol"`
	Raw       fan.Snapshot `json:"raw,omitempty"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: graylogic/health/fan
// QoS: 1, Retained: Yes
// Interval: telemetry.health_interval (30 seconds by default)
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	DeviceID      string            `json:"device_id"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Connection    *ConnectionStatus `json:"connection,omitempty"`
	Statistics    *controller.Stats `json:"statistics,omitempty"`
	Reason        string            `json:"reason,omitempty"`
}

// ConnectionStatus describes the fan connection.
type ConnectionStatus struct {
	// Status is "connected" or "disconnected".
	Status  string `json:"status"`
	Address string `json:"address"`
}

func newAck(cmd CommandMessage, deviceID string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Command:   cmd.Command,
		Status:    AckAccepted,
		Protocol:  mqtt.ProtocolFan,
	}
}

func newAckError(cmd CommandMessage, deviceID, code, message string) AckMessage {
	ack := newAck(cmd, deviceID)
	ack.Status = AckFailed
	if code == ErrCodeTimeout {
		ack.Status = AckTimeout
	}
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// newHealthMessage builds a health message from controller stats.
func newHealthMessage(bridgeID, deviceID, version, address string, status HealthStatus, stats controller.Stats, startTime time.Time) HealthMessage {
	conn := &ConnectionStatus{Status: "disconnected", Address: address}
	if stats.Connected {
		conn.Status = "connected"
	}
	return HealthMessage{
		Bridge:        bridgeID,
		DeviceID:      deviceID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Connection:    conn,
		Statistics:    &stats,
	}
}
