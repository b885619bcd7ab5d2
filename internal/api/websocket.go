package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/logging"
)

// Message types on the WebSocket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Event channels a client can subscribe to.
const (
	ChannelFanReady   = "fan.ready"
	ChannelConnection = "fan.connection"
	ChannelState      = "fan.state_changed"
)

// WSMessage is the envelope for every WebSocket frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists channels for subscribe and unsubscribe.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

func newWSMessage(msgType, id string, payload any) WSMessage {
	return WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

// Hub fans controller events out to WebSocket clients.
//
// It is registered as a controller listener; each callback becomes one event
// delivered to the clients subscribed to its channel. Slow clients lose
// events rather than blocking the controller.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger
	fanID  string

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	device  *fan.Device
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes it. Repeated calls are harmless.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to the clients subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	msg := newWSMessage(WSTypeEvent, "", payload)
	msg.EventType = channel
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var sent, dropped int
	for _, c := range targets {
		if !c.subscribed(channel) {
			continue
		}
		if c.enqueue(data) {
			sent++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("websocket event dropped for slow clients", "channel", channel, "dropped", dropped)
	}
	if sent > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "recipients", sent)
	}
}

func (h *Hub) currentDevice() *fan.Device {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.device
}

func (h *Hub) setDevice(d *fan.Device) {
	h.mu.Lock()
	h.device = d
	h.mu.Unlock()
}

// DeviceReady publishes the resolved model and its capabilities.
func (h *Hub) DeviceReady(d *fan.Device) {
	h.setDevice(d)
	h.Broadcast(ChannelFanReady, map[string]any{
		"fan_id":       h.fanID,
		"model":        d.Model(),
		"family":       d.Family(),
		"protocol":     d.Protocol(),
		"capabilities": d.Capabilities(),
	})
}

// Connected publishes fan.connection with connected=true.
func (h *Hub) Connected(d *fan.Device) {
	h.setDevice(d)
	h.Broadcast(ChannelConnection, map[string]any{"fan_id": h.fanID, "connected": true})
}

// Disconnected publishes fan.connection with connected=false.
func (h *Hub) Disconnected() {
	h.Broadcast(ChannelConnection, map[string]any{"fan_id": h.fanID, "connected": false})
}

// PropertiesUpdated publishes the normalised status and raw properties of
// a poll. Nothing is sent before the device is known.
func (h *Hub) PropertiesUpdated(snap fan.Snapshot) {
	d := h.currentDevice()
	if d == nil {
		return
	}
	h.Broadcast(ChannelState, map[string]any{
		"fan_id":     h.fanID,
		"status":     d.Status(),
		"properties": snap,
	})
}
