package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
)

// Client is the fan bridge's broker connection.
//
// Besides publish and subscribe it keeps a retained online/offline document
// on its status topic (with a matching Last Will) and replays subscriptions
// whenever paho reconnects.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	client      pahomqtt.Client
	cfg         config.MQTTConfig
	statusTopic string

	connected atomic.Bool

	subMu         sync.RWMutex
	subscriptions *orderedmap.OrderedMap[string, subscription]

	// hooksMu guards the connection callbacks and the logger.
	hooksMu      sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is the logging surface the client needs. *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one message. The topic has wildcards expanded.
// A returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// newClient builds an unconnected client with its paho options wired.
func newClient(cfg config.MQTTConfig, statusTopic string) *Client {
	if statusTopic == "" {
		statusTopic = Topics{}.SystemStatus()
	}

	c := &Client{
		cfg:           cfg,
		statusTopic:   statusTopic,
		subscriptions: orderedmap.New[string, subscription](),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, statusTopic, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log().Info("MQTT reconnecting", "broker", cfg.Broker.Host, "client_id", cfg.Broker.ClientID)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect dials the broker and waits for the first CONNACK.
//
// The Last Will on statusTopic is registered before connecting, and an
// "online" document replaces it once the session is up. An empty statusTopic
// falls back to graylogic/system/status.
//
// Parameters:
//   - cfg: Broker address, credentials, TLS and reconnect settings
//   - statusTopic: Retained status topic for this process
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed if the broker is unreachable or refuses us
func Connect(cfg config.MQTTConfig, statusTopic string) (*Client, error) {
	c := newClient(cfg, statusTopic)

	if err := awaitTimeout(c.client.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		// Stop paho's connect-retry loop.
		c.client.Disconnect(0)
		return nil, err
	}

	// The OnConnect handler runs asynchronously; mark the session up now so
	// callers see IsConnected immediately.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) handleConnect() {
	c.connected.Store(true)
	c.restoreSubscriptions()
	c.publishStatus(onlineStatus(c.cfg.Broker.ClientID))

	c.hooksMu.RLock()
	fn := c.onConnect
	c.hooksMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)

	c.hooksMu.RLock()
	fn := c.onDisconnect
	c.hooksMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// restoreSubscriptions replays subscriptions in the order they were made.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make([]subscription, 0, c.subscriptions.Len())
	for pair := c.subscriptions.Oldest(); pair != nil; pair = pair.Next() {
		subs = append(subs, pair.Value)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		go func(topic string) {
			if err := awaitToken(token, ErrSubscribeFailed); err != nil {
				c.log().Warn("MQTT resubscribe failed", "topic", topic, "error", err)
			}
		}(sub.topic)
	}
}

func (c *Client) publishStatus(payload string) pahomqtt.Token {
	return c.client.Publish(c.statusTopic, byte(c.cfg.QoS), true, payload)
}

// StatusTopic returns the retained status/LWT topic.
func (c *Client) StatusTopic() string {
	return c.statusTopic
}

// Close publishes a graceful "offline" status, lets in-flight messages
// drain and disconnects. Closing a client that never connected is a no-op.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.publishStatus(offlineStatus(c.cfg.Broker.ClientID)).WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether both our flag and paho consider the session up.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect registers fn to run after the initial connect and every
// reconnect, once subscriptions have been replayed.
func (c *Client) SetOnConnect(fn func()) {
	c.hooksMu.Lock()
	c.onConnect = fn
	c.hooksMu.Unlock()
}

// SetOnDisconnect registers fn to run when paho reports the connection lost.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.hooksMu.Lock()
	c.onDisconnect = fn
	c.hooksMu.Unlock()
}

// SetLogger sets the logger for handler errors and reconnect events.
func (c *Client) SetLogger(logger Logger) {
	c.hooksMu.Lock()
	c.logger = logger
	c.hooksMu.Unlock()
}

func (c *Client) log() Logger {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	if c.logger == nil {
		return nopLogger{}
	}
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho, logging errors and recovering
// panics so one bad message cannot kill the delivery goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

// checkRequest validates topic and QoS and requires a live session.
func (c *Client) checkRequest(topic string, qos byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return fmt.Errorf("%w: got %d", ErrInvalidQoS, qos)
	case !c.IsConnected():
		return ErrNotConnected
	}
	return nil
}

// awaitToken waits up to defaultPublishTimeout for token.
func awaitToken(token pahomqtt.Token, sentinel error) error {
	return awaitTimeout(token, defaultPublishTimeout, sentinel)
}

// awaitTimeout waits for token and wraps a timeout or failure in sentinel.
func awaitTimeout(token pahomqtt.Token, timeout time.Duration, sentinel error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
