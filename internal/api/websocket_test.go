package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
)

func testHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	hub.fanID = testFanID
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func mockClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
	hub.Register(client)
	return client
}

func receive(t *testing.T, client *WSClient) WSMessage {
	t.Helper()

	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast message")
		return WSMessage{}
	}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := testHub(t)
	client := mockClient(hub, ChannelState)

	hub.Broadcast(ChannelState, map[string]any{"fan_id": testFanID})

	if msg := receive(t, client); msg.EventType != ChannelState {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelState)
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := testHub(t)
	client := mockClient(hub, ChannelConnection)

	hub.Broadcast(ChannelState, map[string]any{"fan_id": testFanID})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}
	client := mockClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_ControllerEvents(t *testing.T) {
	hub := testHub(t)
	client := mockClient(hub, ChannelFanReady, ChannelConnection, ChannelState)

	hub.PropertiesUpdated(nil)
	select {
	case <-client.send:
		t.Fatal("state broadcast before the device was known")
	case <-time.After(50 * time.Millisecond):
	}

	d, _ := attachedP5(t)
	hub.DeviceReady(d)
	hub.Connected(d)
	hub.PropertiesUpdated(d.Properties())
	hub.Disconnected()

	ready := receive(t, client)
	if ready.EventType != ChannelFanReady {
		t.Fatalf("first event = %q, want %q", ready.EventType, ChannelFanReady)
	}
	if payload, _ := ready.Payload.(map[string]any); payload["model"] != "dmaker.fan.p5" {
		t.Errorf("ready payload = %v", ready.Payload)
	}

	connected := receive(t, client)
	if payload, _ := connected.Payload.(map[string]any); connected.EventType != ChannelConnection || payload["connected"] != true {
		t.Errorf("connected event = %+v", connected)
	}

	state := receive(t, client)
	if state.EventType != ChannelState {
		t.Fatalf("third event = %q, want %q", state.EventType, ChannelState)
	}
	payload, _ := state.Payload.(map[string]any)
	status, _ := payload["status"].(map[string]any)
	power, _ := status["power"].(map[string]any)
	if payload["fan_id"] != testFanID || power["value"] != true {
		t.Errorf("state payload = %v", state.Payload)
	}

	disconnected := receive(t, client)
	if payload, _ := disconnected.Payload.(map[string]any); payload["connected"] != false {
		t.Errorf("disconnected event = %+v", disconnected)
	}
}

// dialWebSocket connects to the server's /api/v1/ws endpoint.
func dialWebSocket(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	resp.Body.Close()
	t.Cleanup(func() { ws.Close() })

	//nolint:errcheck // Test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	return ws
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	srv, _ := testServer(t)
	ws := dialWebSocket(t, srv)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelState}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Errorf("response = %+v, want response to sub-1", resp)
	}
	if srv.hub.ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", srv.hub.ClientCount())
	}

	d, _ := attachedP5(t)
	srv.hub.DeviceReady(d)
	srv.hub.PropertiesUpdated(d.Properties())

	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if resp.Type != WSTypeEvent || resp.EventType != ChannelState {
		t.Errorf("broadcast = %+v, want %s event", resp, ChannelState)
	}
}

func TestWebSocket_Unsubscribe(t *testing.T) {
	srv, _ := testServer(t)
	ws := dialWebSocket(t, srv)

	for _, msg := range []WSMessage{
		{Type: WSTypeSubscribe, ID: "sub-1", Payload: WSSubscribePayload{Channels: []string{ChannelState, ChannelConnection}}},
		{Type: WSTypeUnsubscribe, ID: "unsub-1", Payload: WSSubscribePayload{Channels: []string{ChannelConnection}}},
	} {
		if err := ws.WriteJSON(msg); err != nil {
			t.Fatalf("write %s: %v", msg.Type, err)
		}
		var resp WSMessage
		if err := ws.ReadJSON(&resp); err != nil {
			t.Fatalf("read %s response: %v", msg.Type, err)
		}
		if resp.Type != WSTypeResponse || resp.ID != msg.ID {
			t.Errorf("%s response = %+v", msg.Type, resp)
		}
	}
}

func TestWebSocket_Ping(t *testing.T) {
	srv, _ := testServer(t)
	ws := dialWebSocket(t, srv)

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if resp.Type != WSTypePong || resp.ID != "ping-1" {
		t.Errorf("response = %+v, want pong to ping-1", resp)
	}
}

func TestWebSocket_InvalidMessages(t *testing.T) {
	srv, _ := testServer(t)
	ws := dialWebSocket(t, srv)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write invalid message: %v", err)
	}
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read error response: %v", err)
	}
	if resp.Type != WSTypeError {
		t.Errorf("invalid JSON response type = %s, want error", resp.Type)
	}

	if err := ws.WriteJSON(WSMessage{Type: "unknown_type", ID: "test-1"}); err != nil {
		t.Fatalf("write unknown type: %v", err)
	}
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read error response: %v", err)
	}
	if resp.Type != WSTypeError || resp.ID != "test-1" {
		t.Errorf("unknown type response = %+v, want error", resp)
	}
}

func TestKeepaliveDefaults(t *testing.T) {
	ping, wait := keepalive(config.WebSocketConfig{})
	if ping != defaultPingInterval || wait != defaultPingInterval+defaultPongTimeout {
		t.Errorf("keepalive(zero) = %v, %v", ping, wait)
	}

	ping, wait = keepalive(config.WebSocketConfig{PingInterval: 5, PongTimeout: 2})
	if ping != 5*time.Second || wait != 7*time.Second {
		t.Errorf("keepalive(5, 2) = %v, %v", ping, wait)
	}
}

func TestHub_SlowClientDropsEvents(t *testing.T) {
	hub := testHub(t)
	client := mockClient(hub, ChannelState)

	for range wsSendBufferSize + 5 {
		hub.Broadcast(ChannelState, map[string]any{"fan_id": testFanID})
	}
	if len(client.send) != wsSendBufferSize {
		t.Errorf("queued = %d, want %d", len(client.send), wsSendBufferSize)
	}

	hub.Unregister(client)
	if client.enqueue([]byte("{}")) {
		t.Error("enqueue succeeded on a closed client")
	}
}
