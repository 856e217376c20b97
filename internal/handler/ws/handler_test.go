package ws_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/clipdesk/backend/internal/handler/ws"
	channelStore "github.com/zhouzirui/clipdesk/backend/internal/service/channel"
	"github.com/zhouzirui/clipdesk/backend/internal/service/membership"
	"github.com/zhouzirui/clipdesk/backend/internal/service/relay"
	"github.com/zhouzirui/clipdesk/backend/internal/service/session"
	"github.com/zhouzirui/clipdesk/backend/internal/service/synthesis"
)

func newTestServer(t *testing.T) (*httptest.Server, *channelStore.Store) {
	t.Helper()

	store := channelStore.NewStore()
	registry := session.NewRegistry()
	manager := membership.NewManager(store, registry)
	engine := synthesis.NewEngine(nil, store, registry)
	router := relay.NewRouter(store, relay.NewMessageLog(relay.LogCapacity), engine)

	r := chi.NewRouter()
	ws.New(manager, router).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var evt map[string]any
	if err := json.Unmarshal(raw, &evt); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return evt
}

func joinFrame(identity, displayName, channelName string) map[string]any {
	return map[string]any{
		"kind":        "join-channel",
		"timestamp":   time.Now().Unix(),
		"userUuid":    identity,
		"displayName": displayName,
		"channelName": channelName,
	}
}

func users(t *testing.T, evt map[string]any) map[string]any {
	t.Helper()
	if evt["kind"] != "user-list" {
		t.Fatalf("expected user-list, got %v", evt["kind"])
	}
	members, ok := evt["users"].(map[string]any)
	if !ok {
		t.Fatalf("missing users field: %v", evt)
	}
	return members
}

func TestJoinLeaveLifecycle(t *testing.T) {
	srv, store := newTestServer(t)

	c1 := dial(t, srv)
	send(t, c1, joinFrame("u1", "Alice", "room1"))
	if got := users(t, readEvent(t, c1)); len(got) != 1 {
		t.Fatalf("expected 1 member after first join, got %d", len(got))
	}

	c2 := dial(t, srv)
	send(t, c2, joinFrame("u2", "Bob", "room1"))
	if got := users(t, readEvent(t, c2)); len(got) != 2 {
		t.Fatalf("expected 2 members on joiner, got %d", len(got))
	}
	if got := users(t, readEvent(t, c1)); len(got) != 2 {
		t.Fatalf("expected 2 members on first member, got %d", len(got))
	}

	// Disconnect of Bob broadcasts the shrunken user-list to Alice.
	c2.Close()
	got := users(t, readEvent(t, c1))
	if len(got) != 1 {
		t.Fatalf("expected 1 member after disconnect, got %d", len(got))
	}
	if _, ok := got["u1"]; !ok {
		t.Fatalf("expected u1 to remain, got %v", got)
	}

	// Last leave deletes the channel.
	send(t, c1, map[string]any{
		"kind":        "leave-channel",
		"timestamp":   time.Now().Unix(),
		"userUuid":    "u1",
		"channelName": "room1",
	})

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, ok := store.Snapshot("room1"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected channel deleted after last leave")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInvalidJoinRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv)
	send(t, conn, joinFrame("u1", "", "room1"))

	evt := readEvent(t, conn)
	if evt["kind"] != "error" || evt["code"] != "InvalidJoinRequest" {
		t.Fatalf("expected InvalidJoinRequest error, got %v", evt)
	}
}

func TestHeartbeatPong(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv)
	send(t, conn, joinFrame("u1", "Alice", "room1"))
	readEvent(t, conn) // user-list

	send(t, conn, map[string]any{
		"kind":      "message",
		"timestamp": time.Now().Unix(),
		"message": map[string]any{
			"userUuid":    "u1",
			"channelName": "room1",
			"type":        "heartbeat",
			"timestamp":   time.Now().Unix(),
			"ping":        true,
		},
	})

	evt := readEvent(t, conn)
	if evt["kind"] != "pong" {
		t.Fatalf("expected pong, got %v", evt)
	}
}

func TestMessageRebroadcast(t *testing.T) {
	srv, _ := newTestServer(t)

	c1 := dial(t, srv)
	send(t, c1, joinFrame("u1", "Alice", "room1"))
	readEvent(t, c1)

	c2 := dial(t, srv)
	send(t, c2, joinFrame("u2", "Bob", "room1"))
	readEvent(t, c2)
	readEvent(t, c1) // updated user-list

	send(t, c2, map[string]any{
		"kind":      "message",
		"timestamp": time.Now().Unix(),
		"message": map[string]any{
			"userUuid":    "u2",
			"channelName": "room1",
			"type":        "chat-message",
			"timestamp":   time.Now().Unix(),
			"text":        "hello room",
		},
	})

	for _, conn := range []*websocket.Conn{c1, c2} {
		evt := readEvent(t, conn)
		if evt["type"] != "chat-message" || evt["text"] != "hello room" {
			t.Fatalf("expected verbatim chat-message re-broadcast, got %v", evt)
		}
	}
}

func TestUnknownFrameKindRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv)
	send(t, conn, map[string]any{"kind": "bogus", "timestamp": time.Now().Unix()})

	evt := readEvent(t, conn)
	if evt["kind"] != "error" || evt["code"] != "UnknownMessageKind" {
		t.Fatalf("expected UnknownMessageKind error, got %v", evt)
	}
}
