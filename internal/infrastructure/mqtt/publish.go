package mqtt

import "fmt"

// maxPayloadSize caps a single publication. Fan documents are a few hundred
// bytes; anything near this limit is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker to acknowledge it.
//
// Retained publications are used for the fan's state, availability and
// capability documents; acks and health messages are not retained.
//
// Parameters:
//   - topic: Topic to publish to, e.g. graylogic/state/fan/fan-bedroom
//   - payload: Message body, at most 1 MiB
//   - qos: 0, 1 or 2
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or a wrapped ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := c.checkRequest(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	return awaitToken(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}
