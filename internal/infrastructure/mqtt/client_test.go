package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Broker tests expect Mosquitto at 127.0.0.1:1883 and skip without it.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-fan-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local broker or skips the test.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 200*time.Millisecond)
	if err != nil {
		t.Skip("MQTT broker not available at 127.0.0.1:1883")
	}
	conn.Close()

	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	client, err := Connect(cfg, "graylogic/test/status/"+clientID)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// disconnectedClient builds a Client whose paho client never connected.
func disconnectedClient() *Client {
	return newClient(testConfig(), "")
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"BridgeState", topics.BridgeState(ProtocolFan, "fan-bedroom"), "graylogic/state/fan/fan-bedroom"},
		{"BridgeCommand", topics.BridgeCommand(ProtocolFan, "fan-bedroom"), "graylogic/command/fan/fan-bedroom"},
		{"BridgeAck", topics.BridgeAck(ProtocolFan, "fan-bedroom"), "graylogic/ack/fan/fan-bedroom"},
		{"BridgeAvailability", topics.BridgeAvailability(ProtocolFan, "fan-bedroom"), "graylogic/availability/fan/fan-bedroom"},
		{"BridgeCapabilities", topics.BridgeCapabilities(ProtocolFan, "fan-bedroom"), "graylogic/capabilities/fan/fan-bedroom"},
		{"BridgeStatus", topics.BridgeStatus(ProtocolFan, "fan-bedroom"), "graylogic/status/fan/fan-bedroom"},
		{"BridgeHealth", topics.BridgeHealth(ProtocolFan), "graylogic/health/fan"},
		{"SystemStatus", topics.SystemStatus(), "graylogic/system/status"},
		{"AllBridgeCommands", topics.AllBridgeCommands(ProtocolFan), "graylogic/command/fan/+"},
		{"AllBridgeStates", topics.AllBridgeStates(ProtocolFan), "graylogic/state/fan/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "fan"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "graylogic-fan-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "fan" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured without cfg.Broker.TLS")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %s, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below TLS 1.2")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, "graylogic/status/fan/fan-bedroom", "graylogic-fan")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "graylogic/status/fan/fan-bedroom" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("Will retained=%v qos=%d, want true/1", opts.WillRetained, opts.WillQos)
	}

	var p StatusDocument
	if err := json.Unmarshal(opts.WillPayload, &p); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if p.Status != StatusOffline || p.Reason != "unexpected_disconnect" || p.ClientID != "graylogic-fan" {
		t.Errorf("will payload = %+v", p)
	}
}

func TestStatusPayloads(t *testing.T) {
	var online, offline StatusDocument
	if err := json.Unmarshal([]byte(onlineStatus("c1")), &online); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(offlineStatus("c1")), &offline); err != nil {
		t.Fatal(err)
	}

	if online.Status != StatusOnline || online.Reason != "" {
		t.Errorf("online = %+v", online)
	}
	if offline.Status != StatusOffline || offline.Reason != "graceful_shutdown" {
		t.Errorf("offline = %+v", offline)
	}
	if _, err := time.Parse(time.RFC3339, online.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", online.Timestamp, err)
	}
}

// =============================================================================
// Validation Tests (no broker)
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	if (&Client{}).IsConnected() {
		t.Error("IsConnected() = true for zero client")
	}
	if disconnectedClient().IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := disconnectedClient()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "graylogic/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized", "graylogic/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "graylogic/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := disconnectedClient()
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		want    error
	}{
		{"empty topic", "", 1, noop, ErrInvalidTopic},
		{"invalid qos", "graylogic/test", 5, noop, ErrInvalidQoS},
		{"nil handler", "graylogic/test", 1, nil, ErrSubscribeFailed},
		{"disconnected", "graylogic/test", 1, noop, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.want) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.want)
			}
		})
	}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := disconnectedClient()

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("graylogic/test"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Handler wrapping
// =============================================================================

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

type fakeMessage struct {
	pahomqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestWrapHandlerLogsErrorsAndRecoversPanics(t *testing.T) {
	client := disconnectedClient()
	logger := &recordingLogger{}
	client.SetLogger(logger)

	msg := fakeMessage{topic: "graylogic/command/fan/fan-bedroom", payload: []byte("{}")}

	client.wrapHandler(func(string, []byte) error { return errors.New("bad command") })(nil, msg)
	client.wrapHandler(func(string, []byte) error { panic("boom") })(nil, msg)

	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want 1", logger.warns)
	}
	if len(logger.errs) != 1 {
		t.Errorf("errors = %v, want 1", logger.errs)
	}
}

func TestWrapHandlerWithoutLogger(t *testing.T) {
	client := disconnectedClient()
	var got string
	client.wrapHandler(func(topic string, _ []byte) error {
		got = topic
		panic("boom")
	})(nil, fakeMessage{topic: "graylogic/test"})

	if got != "graylogic/test" {
		t.Errorf("handler topic = %q", got)
	}
}

func TestNewClient_DefaultStatusTopic(t *testing.T) {
	client := newClient(testConfig(), "")
	want := Topics{}.SystemStatus()
	if client.StatusTopic() != want {
		t.Errorf("StatusTopic() = %q, want %q", client.StatusTopic(), want)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestRestoreSubscriptionsLogsFailures(t *testing.T) {
	client := disconnectedClient()
	logger := &recordingLogger{}
	client.SetLogger(logger)

	noop := func(string, []byte) error { return nil }
	for _, topic := range []string{"graylogic/a", "graylogic/b"} {
		client.subscriptions.Set(topic, subscription{topic: topic, qos: 1, handler: noop})
	}

	client.restoreSubscriptions()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		logger.mu.Lock()
		n := len(logger.warns)
		logger.mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 2 {
		t.Errorf("warnings = %v, want one per failed resubscribe", logger.warns)
	}
	if !client.HasSubscription("graylogic/a") || client.SubscriptionCount() != 2 {
		t.Error("failed resubscribe should keep the subscription for the next reconnect")
	}
}

// =============================================================================
// Broker Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectOrSkip(t, "graylogic-fan-test-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if client.StatusTopic() != "graylogic/test/status/graylogic-fan-test-connect" {
		t.Errorf("StatusTopic() = %q", client.StatusTopic())
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg, "")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose(t *testing.T) {
	client := connectOrSkip(t, "graylogic-fan-test-close")

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	client := connectOrSkip(t, "graylogic-fan-test-roundtrip")

	topic := Topics{}.BridgeCommand(ProtocolFan, "roundtrip")
	received := make(chan []byte, 1)

	err := client.Subscribe(Topics{}.AllBridgeCommands(ProtocolFan), 1, func(got string, payload []byte) error {
		if got == topic {
			received <- payload
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(Topics{}.AllBridgeCommands(ProtocolFan)) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	if err := client.Publish(topic, []byte(`{"command":"set_power"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != `{"command":"set_power"}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	if err := client.Unsubscribe(Topics{}.AllBridgeCommands(ProtocolFan)); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestOnDisconnectCallback(t *testing.T) {
	client := connectOrSkip(t, "graylogic-fan-test-ondisconnect")

	called := make(chan error, 1)
	client.SetOnDisconnect(func(err error) { called <- err })
	client.handleDisconnect(errors.New("simulated"))

	select {
	case err := <-called:
		if err == nil || err.Error() != "simulated" {
			t.Errorf("callback error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect not called")
	}
}
