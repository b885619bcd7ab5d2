package mifan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-fan/internal/command"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// commandTimeout bounds one command, RPC and refresh included.
	commandTimeout = 10 * time.Second

	// outboxSize is the number of MQTT publications buffered between the
	// controller loop and the publisher goroutine.
	outboxSize = 64

	// commandQueueSize is the number of commands waiting for the device.
	commandQueueSize = 16

	// stopPublishTimeout bounds the final offline publication.
	stopPublishTimeout = 2 * time.Second
)

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the interface for MQTT operations.
// Satisfied by *mqtt.Client; tests use an in-memory fake.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Options holds configuration for creating a bridge.
type Options struct {
	// DeviceID is the Gray Logic fan id used in every topic. Required.
	DeviceID string

	// Address is the fan address, reported in health messages.
	Address string

	// Version is the bridge software version.
	Version string

	// MQTTClient is the MQTT client implementation. Required.
	MQTTClient MQTTClient

	// Features gates which commands are accepted and announced.
	Features config.FeaturesConfig

	// Stats provides controller counters for health messages. Optional.
	Stats StatsSource

	// HealthInterval is the health publish interval. Default: 30 seconds.
	HealthInterval time.Duration

	Logger Logger
}

type outMsg struct {
	topic    string
	payload  []byte
	retained bool
}

// Bridge translates controller events into MQTT messages and MQTT commands
// into device calls. It implements controller.Listener.
//
// Publications go through a buffered outbox drained by one goroutine, so
// listener methods never block the controller loop. Commands are executed one
// at a time on a second goroutine, off the MQTT client's delivery path.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	deviceID   string
	mqtt       MQTTClient
	dispatcher *command.Dispatcher
	health     *HealthReporter

	topics struct {
		state, command, ack, availability, capabilities string
	}

	mu        sync.RWMutex
	device    *fan.Device
	lastState []byte
	retained  map[string][]byte

	outbox   chan outMsg
	commands chan CommandMessage

	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Register it with the controller and call Start.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		deviceID:   opts.DeviceID,
		mqtt:       opts.MQTTClient,
		dispatcher: command.NewDispatcher(opts.Features),
		retained:   make(map[string][]byte),
		outbox:     make(chan outMsg, outboxSize),
		commands:   make(chan CommandMessage, commandQueueSize),
		ctx:        ctx,
		ctxCancel:  cancel,
		logger:     noopLogger{},
	}

	t := mqtt.Topics{}
	b.topics.state = t.BridgeState(mqtt.ProtocolFan, opts.DeviceID)
	b.topics.command = t.BridgeCommand(mqtt.ProtocolFan, opts.DeviceID)
	b.topics.ack = t.BridgeAck(mqtt.ProtocolFan, opts.DeviceID)
	b.topics.availability = t.BridgeAvailability(mqtt.ProtocolFan, opts.DeviceID)
	b.topics.capabilities = t.BridgeCapabilities(mqtt.ProtocolFan, opts.DeviceID)

	b.health = NewHealthReporter(HealthReporterConfig{
		DeviceID:  opts.DeviceID,
		Version:   opts.Version,
		Address:   opts.Address,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Stats:     opts.Stats,
	})
	b.SetLogger(opts.Logger)

	return b, nil
}

// Start subscribes to the command topic and starts the publisher, command
// and health goroutines.
func (b *Bridge) Start(ctx context.Context) error {
	var err error
	b.startOnce.Do(func() {
		if pubErr := b.health.PublishStarting(); pubErr != nil {
			b.log().Debug("failed to publish starting status", "error", pubErr)
		}

		if subErr := b.mqtt.Subscribe(b.topics.command, 1, b.handleCommandMessage); subErr != nil {
			err = fmt.Errorf("subscribe to commands: %w", subErr)
			return
		}
		b.log().Info("subscribed to commands", "topic", b.topics.command)

		b.wg.Add(2)
		go b.publishLoop()
		go b.commandLoop()

		b.health.Start(ctx)
		b.log().Info("fan bridge started", "device_id", b.deviceID)
	})
	return err
}

// Stop publishes "offline" availability, stops health reporting and waits
// for the bridge goroutines. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.wg.Wait()

		if err := b.mqtt.Unsubscribe(b.topics.command); err != nil {
			b.log().Debug("failed to unsubscribe from commands", "error", err)
		}

		b.publishNow(b.availabilityMessage(AvailabilityOffline))
		b.health.Stop()
		b.log().Info("fan bridge stopped")
	})
}

// Republish re-sends every retained message. Wire it to the MQTT client's
// reconnect callback so a restarted broker regains the current state.
func (b *Bridge) Republish() {
	b.mu.RLock()
	msgs := make([]outMsg, 0, len(b.retained))
	for _, topic := range []string{b.topics.capabilities, b.topics.availability, b.topics.state} {
		if payload, ok := b.retained[topic]; ok {
			msgs = append(msgs, outMsg{topic: topic, payload: payload, retained: true})
		}
	}
	b.mu.RUnlock()

	for _, m := range msgs {
		b.enqueue(m)
	}
}

// Health returns the bridge's health reporter.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

// DeviceReady publishes the capabilities of a newly created device.
func (b *Bridge) DeviceReady(d *fan.Device) {
	b.mu.Lock()
	b.device = d
	b.lastState = nil
	b.mu.Unlock()

	msg := CapabilitiesMessage{
		DeviceID:     b.deviceID,
		Name:         d.Name(),
		Model:        d.Model(),
		Family:       d.Family(),
		Protocol:     d.Protocol(),
		Capabilities: d.Capabilities(),
		Commands:     b.dispatcher.Available(d.Capabilities()),
		Timestamp:    time.Now().UTC(),
	}
	b.publishRetained(b.topics.capabilities, msg)
}

// Connected publishes "online" availability.
func (b *Bridge) Connected(d *fan.Device) {
	b.mu.Lock()
	b.device = d
	b.mu.Unlock()

	b.enqueueMessage(b.availabilityMessage(AvailabilityOnline))
}

// Disconnected publishes "offline" availability.
func (b *Bridge) Disconnected() {
	b.enqueueMessage(b.availabilityMessage(AvailabilityOffline))
}

// PropertiesUpdated publishes the device status when it differs from the
// last published state.
func (b *Bridge) PropertiesUpdated(snap fan.Snapshot) {
	b.mu.RLock()
	d := b.device
	b.mu.RUnlock()
	if d == nil {
		return
	}

	status := d.Status()
	key, err := json.Marshal(struct {
		State fan.Status   `json:"state"`
		Raw   fan.Snapshot `json:"raw"`
	}{status, snap})
	if err != nil {
		b.log().Warn("failed to encode state", "error", err)
		return
	}

	b.mu.Lock()
	if bytes.Equal(key, b.lastState) {
		b.mu.Unlock()
		return
	}
	b.lastState = key
	b.mu.Unlock()

	b.publishRetained(b.topics.state, StateMessage{
		DeviceID:  b.deviceID,
		Timestamp: time.Now().UTC(),
		Model:     d.Model(),
		State:     status,
		Protocol:  mqtt.ProtocolFan,
		Raw:       snap,
	})
}

// handleCommandMessage parses a command and queues it for execution.
func (b *Bridge) handleCommandMessage(_ string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		cmd.ID = uuid.NewString()
		b.publishAck(newAckError(cmd, b.deviceID, ErrCodeInvalidCommand, "invalid JSON payload"))
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Command == "" {
		b.publishAck(newAckError(cmd, b.deviceID, ErrCodeInvalidCommand, "command field is required"))
		return fmt.Errorf("%w: command field is required", ErrInvalidMessage)
	}

	select {
	case b.commands <- cmd:
		return nil
	default:
		b.publishAck(newAckError(cmd, b.deviceID, ErrCodeBridgeError, "command queue full"))
		return fmt.Errorf("command queue full, dropped %s", cmd.ID)
	}
}

func (b *Bridge) commandLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case cmd := <-b.commands:
			b.executeCommand(cmd)
		}
	}
}

// executeCommand runs one command and publishes its acknowledgement.
func (b *Bridge) executeCommand(cmd CommandMessage) {
	b.log().Info("received command",
		"command_id", cmd.ID,
		"command", cmd.Command,
		"source", cmd.Source)

	if cmd.DeviceID != "" && cmd.DeviceID != b.deviceID {
		b.publishAck(newAckError(cmd, b.deviceID, ErrCodeNotConfigured,
			fmt.Sprintf("%v: %s", ErrWrongDevice, cmd.DeviceID)))
		return
	}

	b.mu.RLock()
	d := b.device
	b.mu.RUnlock()
	if d == nil {
		b.publishAck(newAckError(cmd, b.deviceID, ErrCodeDeviceUnreachable, ErrNoDevice.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := b.dispatcher.Execute(ctx, d, cmd.Command, cmd.Parameters); err != nil {
		b.log().Warn("command failed", "command_id", cmd.ID, "command", cmd.Command, "error", err)
		b.publishAck(newAckError(cmd, b.deviceID, errorCode(err), err.Error()))
		return
	}
	b.publishAck(newAck(cmd, b.deviceID))
}

// errorCode maps a command error to an ack error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, command.ErrUnknownCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, command.ErrInvalidParameters):
		return ErrCodeInvalidParameters
	case errors.Is(err, command.ErrFeatureDisabled):
		return ErrCodeFeatureDisabled
	case errors.Is(err, fan.ErrUnsupported):
		return ErrCodeNotSupported
	case errors.Is(err, fan.ErrNotConnected):
		return ErrCodeDeviceUnreachable
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	default:
		return ErrCodeBridgeError
	}
}

func (b *Bridge) availabilityMessage(status string) outMsg {
	//nolint:errchkjson // AvailabilityMessage has only plain fields
	payload, _ := json.Marshal(AvailabilityMessage{
		DeviceID:  b.deviceID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
	return outMsg{topic: b.topics.availability, payload: payload, retained: true}
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.log().Error("failed to marshal ack", "error", err)
		return
	}
	b.enqueue(outMsg{topic: b.topics.ack, payload: payload})
}

func (b *Bridge) publishRetained(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log().Error("failed to marshal message", "topic", topic, "error", err)
		return
	}
	b.enqueueMessage(outMsg{topic: topic, payload: payload, retained: true})
}

// enqueueMessage remembers retained payloads for Republish, then queues.
func (b *Bridge) enqueueMessage(m outMsg) {
	if m.retained {
		b.mu.Lock()
		b.retained[m.topic] = m.payload
		b.mu.Unlock()
	}
	b.enqueue(m)
}

func (b *Bridge) enqueue(m outMsg) {
	select {
	case b.outbox <- m:
	default:
		b.log().Warn("MQTT outbox full, dropping message", "topic", m.topic)
	}
}

func (b *Bridge) publishLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			b.drainOutbox()
			return
		case m := <-b.outbox:
			b.send(m)
		}
	}
}

// drainOutbox sends whatever is already queued at shutdown.
func (b *Bridge) drainOutbox() {
	for {
		select {
		case m := <-b.outbox:
			b.send(m)
		default:
			return
		}
	}
}

func (b *Bridge) send(m outMsg) {
	if err := b.mqtt.Publish(m.topic, m.payload, 1, m.retained); err != nil {
		b.log().Debug("MQTT publish failed", "topic", m.topic, "error", err)
	}
}

// publishNow sends synchronously, used after the publisher has stopped.
func (b *Bridge) publishNow(m outMsg) {
	if m.retained {
		b.mu.Lock()
		b.retained[m.topic] = m.payload
		b.mu.Unlock()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.send(m)
	}()
	select {
	case <-done:
	case <-time.After(stopPublishTimeout):
		b.log().Warn("timed out publishing offline availability")
	}
}

func (b *Bridge) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}
