// Package mqtt provides MQTT client connectivity for the Gray Logic fan bridge.
//
// This package manages:
//   - Connection to the Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - A retained status topic backed by a Last Will and Testament
//
// # Architecture
//
// The fan bridge publishes state, availability and capabilities for one fan
// and receives commands for it. Gray Logic Core talks to it only through the
// broker:
//
//	Gray Logic Core ↔ MQTT Broker ↔ Fan Bridge ↔ miIO (UDP) ↔ Fan
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Anonymous access is only for local development
//
// # Usage
//
//	status := mqtt.Topics{}.BridgeStatus(mqtt.ProtocolFan, "fan-bedroom")
//	client, err := mqtt.Connect(cfg.MQTT, status)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BridgeCommand(mqtt.ProtocolFan, "fan-bedroom"), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(payload)
//	    })
package mqtt
