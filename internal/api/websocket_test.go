package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/logging"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func testClient(hub *Hub, channels ...string) *WSClient {
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		client.subscriptions[ch] = struct{}{}
	}
	hub.Register(client)
	return client
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := testHub(t)
	client := testClient(hub, "shelly.stale")

	hub.Broadcast("shelly.stale", map[string]any{"type": "SHSW-1", "id": "A1"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent || wsMsg.EventType != "shelly.stale" {
			t.Errorf("message = %+v", wsMsg)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := testHub(t)
	client := testClient(hub, "shelly.add")

	hub.Broadcast("shelly.remove", map[string]any{"id": "A1"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWSClient_IsSubscribed(t *testing.T) {
	client := &WSClient{subscriptions: map[string]struct{}{
		"shelly.*":  {},
		"system.up": {},
	}}

	tests := []struct {
		channel string
		want    bool
	}{
		{"shelly.add", true},
		{"shelly.unknownDevice", true},
		{"shelly", false},
		{"shellyx.add", false},
		{"system.up", true},
		{"system.down", false},
	}
	for _, tt := range tests {
		if got := client.isSubscribed(tt.channel); got != tt.want {
			t.Errorf("isSubscribed(%q) = %v, want %v", tt.channel, got, tt.want)
		}
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(t)
	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := testClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_TrySendAfterUnregister(t *testing.T) {
	hub := testHub(t)
	client := testClient(hub, "shelly.add")
	hub.Unregister(client)

	// Must not panic on the closed channel.
	client.trySend([]byte(`{}`))
}

// ─── WebSocket Endpoint Tests ──────────────────────────────────────

func wsURL(ts *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocket_RequiresToken(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	for _, token := range []string{"", "not-a-jwt"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, token), nil)
		if err == nil {
			t.Fatalf("Dial(token=%q) succeeded without a valid token", token)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Dial(token=%q) response = %v, want 401", token, resp)
		}
		if resp != nil {
			resp.Body.Close()
		}
	}
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, validToken(t)), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	err = conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{"shelly.*"}},
	})
	if err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	ack := readMessage(t, conn)
	if ack.Type != WSTypeResponse || ack.ID != "sub-1" {
		t.Fatalf("ack = %+v", ack)
	}
	if env.srv.Hub().ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", env.srv.Hub().ClientCount())
	}

	env.srv.Hub().Broadcast("shelly.discover", map[string]any{"type": "SHSW-1", "id": "A1"})

	event := readMessage(t, conn)
	if event.Type != WSTypeEvent || event.EventType != "shelly.discover" {
		t.Errorf("event = %+v", event)
	}
	payload, ok := event.Payload.(map[string]any)
	if !ok || payload["id"] != "A1" {
		t.Errorf("payload = %v", event.Payload)
	}
}

func TestWebSocket_PingAndUnknownType(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	header := http.Header{"Authorization": {"Bearer " + validToken(t)}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), header)
	if err != nil {
		t.Fatalf("Dial() with header token error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if pong := readMessage(t, conn); pong.Type != WSTypePong || pong.ID != "p1" {
		t.Errorf("pong = %+v", pong)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus", ID: "b1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError || msg.ID != "b1" {
		t.Errorf("error message = %+v", msg)
	}
}
