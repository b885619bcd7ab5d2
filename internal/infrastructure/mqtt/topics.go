package mqtt

import "fmt"

// Topic layout for the fan bridge.
//
// Bridge topics use the flat scheme graylogic/{category}/{protocol}/{id}, the
// same scheme Gray Logic Core subscribes to for every other bridge.
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "graylogic"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"

	// ProtocolFan is the protocol segment used by the fan bridge.
	ProtocolFan = "fan"
)

// Topics provides builders for Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState(mqtt.ProtocolFan, "fan-bedroom")
//	// Returns: "graylogic/state/fan/fan-bedroom"
type Topics struct{}

// BridgeState returns the topic for device state published by a bridge.
//
// Example: graylogic/state/fan/fan-bedroom
func (Topics) BridgeState(protocol, id string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, id)
}

// BridgeCommand returns the topic for commands sent to a bridge device.
//
// Example: graylogic/command/fan/fan-bedroom
func (Topics) BridgeCommand(protocol, id string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, id)
}

// BridgeAck returns the topic for command acknowledgements.
//
// Example: graylogic/ack/fan/fan-bedroom
func (Topics) BridgeAck(protocol, id string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, id)
}

// BridgeAvailability returns the topic reporting whether the bridge can
// reach the device.
//
// Example: graylogic/availability/fan/fan-bedroom
func (Topics) BridgeAvailability(protocol, id string) string {
	return fmt.Sprintf("%s/availability/%s/%s", TopicPrefix, protocol, id)
}

// BridgeCapabilities returns the topic describing what a device supports.
//
// Example: graylogic/capabilities/fan/fan-bedroom
func (Topics) BridgeCapabilities(protocol, id string) string {
	return fmt.Sprintf("%s/capabilities/%s/%s", TopicPrefix, protocol, id)
}

// BridgeStatus returns the retained process status topic of a bridge
// instance. It also carries the Last Will.
//
// Example: graylogic/status/fan/fan-bedroom
func (Topics) BridgeStatus(protocol, id string) string {
	return fmt.Sprintf("%s/status/%s/%s", TopicPrefix, protocol, id)
}

// BridgeHealth returns the topic for bridge health reports.
//
// Example: graylogic/health/fan
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// SystemStatus returns the system status topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllBridgeCommands returns a pattern matching every command for a protocol.
//
// Pattern: graylogic/command/fan/+
func (Topics) AllBridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, protocol)
}

// AllBridgeStates returns a pattern matching every state update for a protocol.
//
// Pattern: graylogic/state/fan/+
func (Topics) AllBridgeStates(protocol string) string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, protocol)
}
