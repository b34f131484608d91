package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"arenaforge.gg/internal/sim/events"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", name))
	require.NoError(t, err)
	return s
}

func dial(t *testing.T, h *Hub, sub SubscribeMsg) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)

	before := h.Clients()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.WriteJSON(sub))
	require.Eventually(t, func() bool { return h.Clients() == before+1 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	return b
}

func TestHub_StreamsSchemaValidEvents(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := dial(t, h, SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: ProtocolVersion})

	h.Emit(events.Event{
		Tick:  42,
		Time:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Type:  events.ArenaReset,
		Match: "3f1c",
		Arena: "sky",
		Data:  map[string]any{"blocks": 3, "items": 1},
	})

	var doc any
	require.NoError(t, json.Unmarshal(read(t, conn), &doc))
	require.NoError(t, compile(t, "event.schema.json").Validate(doc))
	require.Equal(t, "arena.reset", doc.(map[string]any)["type"])
}

func TestHub_FiltersByArena(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := dial(t, h, SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: ProtocolVersion, Arenas: []string{"Sky"}})

	h.Emit(events.Event{Tick: 1, Type: events.MatchState, Match: "a", Arena: "lava"})
	h.Emit(events.Event{Tick: 2, Type: events.MatchState, Match: "b", Arena: "sky"})

	var e events.Event
	require.NoError(t, json.Unmarshal(read(t, conn), &e))
	require.Equal(t, "b", e.Match)
}

func TestHub_RejectsBadHandshake(t *testing.T) {
	h := NewHub(zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(SubscribeMsg{Type: "HELLO", ProtocolVersion: ProtocolVersion}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	require.Zero(t, h.Clients())
}

func TestHub_DropsDisconnected(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := dial(t, h, SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: ProtocolVersion})
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_KeepsSilentReader(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.pongWait, h.pingPeriod = 300*time.Millisecond, 100*time.Millisecond
	conn := dial(t, h, SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: ProtocolVersion})

	frames := make(chan []byte, 1)
	go func() {
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				close(frames)
				return
			}
			frames <- b
		}
	}()

	time.Sleep(time.Second)
	require.Equal(t, 1, h.Clients())

	h.Emit(events.Event{Tick: 7, Type: events.MatchState, Match: "m", Arena: "sky"})
	select {
	case b, ok := <-frames:
		require.True(t, ok)
		var e events.Event
		require.NoError(t, json.Unmarshal(b, &e))
		require.Equal(t, "m", e.Match)
	case <-time.After(2 * time.Second):
		t.Fatal("no event after idle period")
	}
}

func TestHub_DropsUnresponsivePeer(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.pongWait, h.pingPeriod = 200*time.Millisecond, 50*time.Millisecond
	dial(t, h, SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: ProtocolVersion})

	// never reading means pings are never answered
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_LoopbackOnlyRefusesRemote(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.LoopbackOnly = true
	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	rw := httptest.NewRecorder()
	h.Handler().ServeHTTP(rw, req)
	require.Equal(t, http.StatusForbidden, rw.Code)

	// local subscribers still get through
	dial(t, h, SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: ProtocolVersion})
}

func TestSubscribeSchema(t *testing.T) {
	s := compile(t, "subscribe.schema.json")
	var doc any
	b, err := json.Marshal(SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: ProtocolVersion, Arenas: []string{"sky"}})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &doc))
	require.NoError(t, s.Validate(doc))
}

func TestIsLoopbackRemote(t *testing.T) {
	require.True(t, isLoopbackRemote("127.0.0.1:5555"))
	require.True(t, isLoopbackRemote("[::1]:80"))
	require.False(t, isLoopbackRemote("10.0.0.2:80"))
	require.False(t, isLoopbackRemote("garbage"))
}
