package mqtt

import "fmt"

// Subscribe registers handler for topic, which may contain + and #
// wildcards. The subscription is remembered and replayed, in the order it
// was first made, after every reconnect.
//
// Handlers run on paho's delivery goroutine. A handler error is logged at
// warn level and a panic is recovered and logged.
//
// Example:
//
//	err := client.Subscribe(mqtt.Topics{}.AllBridgeCommands(mqtt.ProtocolFan), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(topic, payload)
//	    })
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if err := c.checkRequest(topic, qos); err != nil {
		return err
	}

	sub := subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Lock()
	previous, existed := c.subscriptions.Set(topic, sub)
	c.subMu.Unlock()

	if err := awaitToken(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.subMu.Lock()
		if existed {
			c.subscriptions.Set(topic, previous)
		} else {
			c.subscriptions.Delete(topic)
		}
		c.subMu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe drops the subscription for the exact topic string used with
// Subscribe. Messages already in flight may still be delivered.
func (c *Client) Unsubscribe(topic string) error {
	if err := c.checkRequest(topic, 0); err != nil {
		return err
	}

	c.subMu.Lock()
	c.subscriptions.Delete(topic)
	c.subMu.Unlock()

	return awaitToken(c.client.Unsubscribe(topic), ErrSubscribeFailed)
}

// SubscriptionCount returns the number of remembered subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions.Len()
}

// HasSubscription reports whether topic was subscribed. Only the exact
// string is matched, not wildcards.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions.Get(topic)
	return ok
}
