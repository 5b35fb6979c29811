package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerResult struct {
	conn *Conn
	err  error
}

// testRegistry spins up a WebSocket endpoint backed by a Registry so tests
// exercise real gorilla connections end to end. The returned dial function
// yields the client side and the registered server-side Conn (nil when
// registration was rejected).
func testRegistry(t *testing.T, clock clockwork.Clock, opts Options) (*Registry, func(clientType string) (*gws.Conn, *Conn)) {
	t.Helper()

	registry := NewRegistry(clock, opts)
	t.Cleanup(func() { registry.CloseAll("test teardown") })

	upgrader := gws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	results := make(chan registerResult, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}

		conn, err := registry.Register(socket, r.URL.Query().Get("type"), r.RemoteAddr)
		results <- registerResult{conn: conn, err: err}
		if err != nil {
			closeMsg := gws.FormatCloseMessage(gws.CloseTryAgainLater, "server at capacity")
			_ = socket.WriteMessage(gws.CloseMessage, closeMsg)
			_ = socket.Close()
			return
		}

		// Server-side read pump: delivers pong control frames to the
		// registry's pong handler and drains client frames.
		go func() {
			for {
				if _, _, err := socket.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	dial := func(clientType string) (*gws.Conn, *Conn) {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?type=" + clientType
		client, _, err := gws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })
		res := <-results
		return client, res.conn
	}

	return registry, dial
}

func readJSONFrame(t *testing.T, client *gws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))
	return result
}

func TestRegistry_RegisterTracksConnections(t *testing.T) {
	registry, dial := testRegistry(t, clockwork.NewRealClock(), Options{})

	_, conn := dial("overlay")
	require.NotNil(t, conn)

	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, "overlay", conn.ClientType)
	assert.NotEqual(t, uuid.Nil, conn.ID)
	assert.True(t, conn.IsAlive())
	assert.False(t, conn.ConnectedAt.IsZero())
}

func TestRegistry_CapacityRejection(t *testing.T) {
	registry, dial := testRegistry(t, clockwork.NewRealClock(), Options{MaxConnections: 2})

	_, conn1 := dial("overlay")
	_, conn2 := dial("admin")
	require.NotNil(t, conn1)
	require.NotNil(t, conn2)
	require.Equal(t, 2, registry.Len())

	client3, conn3 := dial("viewer")
	assert.Nil(t, conn3)
	assert.Equal(t, 2, registry.Len())

	// The rejected client sees a try-again-later close frame.
	require.NoError(t, client3.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := client3.ReadMessage()
	assert.True(t, gws.IsCloseError(err, gws.CloseTryAgainLater))

	// The tracked connections are untouched.
	assert.Equal(t, 2, registry.Len())
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	var disconnects []string

	registry, dial := testRegistry(t, clockwork.NewRealClock(), Options{
		OnDisconnect: func(conn *Conn, code int, reason string) {
			mu.Lock()
			disconnects = append(disconnects, reason)
			mu.Unlock()
		},
	})

	client, conn := dial("overlay")
	require.NotNil(t, conn)

	registry.Unregister(conn.ID, gws.CloseNormalClosure, "done")
	registry.Unregister(conn.ID, gws.CloseNormalClosure, "done")
	registry.Unregister(uuid.New(), gws.CloseNormalClosure, "unknown")

	assert.Equal(t, 0, registry.Len())
	mu.Lock()
	assert.Equal(t, []string{"done"}, disconnects)
	mu.Unlock()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := client.ReadMessage()
	assert.True(t, gws.IsCloseError(err, gws.CloseNormalClosure))
}

func TestRegistry_SendSerializesPayload(t *testing.T) {
	registry, dial := testRegistry(t, clockwork.NewRealClock(), Options{})
	client, conn := dial("overlay")
	require.NotNil(t, conn)

	require.True(t, registry.Send(conn.ID, NewEffect("tada", map[string]any{"user": "Alice"})))

	frame := readJSONFrame(t, client)
	assert.Equal(t, "effect", frame["type"])
	assert.Equal(t, "tada", frame["value"])
	data, ok := frame["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", data["user"])
}

func TestRegistry_SendPassesStringsThrough(t *testing.T) {
	registry, dial := testRegistry(t, clockwork.NewRealClock(), Options{})
	client, conn := dial("overlay")
	require.NotNil(t, conn)

	require.True(t, registry.Send(conn.ID, `{"type":"raw"}`))

	frame := readJSONFrame(t, client)
	assert.Equal(t, "raw", frame["type"])
}

func TestRegistry_SendUnknownConnection(t *testing.T) {
	registry, _ := testRegistry(t, clockwork.NewRealClock(), Options{})
	assert.False(t, registry.Send(uuid.New(), "nobody home"))
}

func TestRegistry_SnapshotFilters(t *testing.T) {
	registry, dial := testRegistry(t, clockwork.NewRealClock(), Options{})

	_, admin := dial("admin")
	_, overlay1 := dial("overlay")
	_, overlay2 := dial("overlay")
	_, viewer := dial("viewer")
	require.NotNil(t, admin)
	require.NotNil(t, overlay1)
	require.NotNil(t, overlay2)
	require.NotNil(t, viewer)

	assert.Len(t, registry.Snapshot(Filter{}), 4)
	assert.Len(t, registry.Snapshot(Filter{ClientType: "overlay"}), 2)
	assert.Len(t, registry.Snapshot(Filter{ClientType: "admin"}), 1)
	assert.Empty(t, registry.Snapshot(Filter{ClientType: "bot"}))

	registry.Subscribe(overlay1.ID, "alerts")
	alerts := registry.Snapshot(Filter{Channel: "alerts"})
	require.Len(t, alerts, 1)
	assert.Equal(t, overlay1.ID, alerts[0].ID)

	// Both filter dimensions must match.
	assert.Empty(t, registry.Snapshot(Filter{ClientType: "admin", Channel: "alerts"}))

	picked := registry.Snapshot(Filter{Predicate: func(c *Conn) bool { return c.ID == viewer.ID }})
	require.Len(t, picked, 1)
	assert.Equal(t, viewer.ID, picked[0].ID)
}

func TestRegistry_SubscribeUnsubscribe(t *testing.T) {
	registry, dial := testRegistry(t, clockwork.NewRealClock(), Options{})
	_, conn := dial("overlay")
	require.NotNil(t, conn)

	assert.False(t, conn.Subscribed("alerts"))

	registry.Subscribe(conn.ID, "alerts")
	assert.True(t, conn.Subscribed("alerts"))

	registry.Unsubscribe(conn.ID, "alerts")
	assert.False(t, conn.Subscribed("alerts"))

	// Unknown ids are ignored.
	registry.Subscribe(uuid.New(), "alerts")
	registry.Unsubscribe(uuid.New(), "alerts")
}

func TestRegistry_AllowInbound_Throttles(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	registry, dial := testRegistry(t, clock, Options{MessageMinInterval: 500 * time.Millisecond})
	_, conn := dial("overlay")
	require.NotNil(t, conn)

	assert.True(t, registry.AllowInbound(conn, 10))
	assert.False(t, registry.AllowInbound(conn, 10))

	clock.Advance(499 * time.Millisecond)
	assert.False(t, registry.AllowInbound(conn, 10))

	clock.Advance(time.Millisecond)
	assert.True(t, registry.AllowInbound(conn, 10))

	assert.Equal(t, int64(2), conn.MessageCount())
}

func TestRegistry_AllowInbound_PayloadCeiling(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	registry, dial := testRegistry(t, clock, Options{MaxPayloadBytes: 64})
	_, conn := dial("overlay")
	require.NotNil(t, conn)

	assert.False(t, registry.AllowInbound(conn, 65))
	assert.Equal(t, int64(0), conn.MessageCount())

	assert.True(t, registry.AllowInbound(conn, 64))
	assert.Equal(t, int64(1), conn.MessageCount())
}

func TestRegistry_CloseAll(t *testing.T) {
	registry, dial := testRegistry(t, clockwork.NewRealClock(), Options{})

	for range 3 {
		_, conn := dial("overlay")
		require.NotNil(t, conn)
	}
	require.Equal(t, 3, registry.Len())

	registry.CloseAll("shutdown")
	assert.Equal(t, 0, registry.Len())
}

func TestEncodePayload(t *testing.T) {
	assert.Equal(t, []byte("plain"), encodePayload("plain"))
	assert.Equal(t, []byte{1, 2, 3}, encodePayload([]byte{1, 2, 3}))

	data := encodePayload(NewUpdate("planning"))
	var update map[string]any
	require.NoError(t, json.Unmarshal(data, &update))
	assert.Equal(t, "update", update["type"])
	assert.Equal(t, "planning", update["target"])

	// Unmarshalable payloads degrade to an error frame instead of failing
	// the whole broadcast.
	bad := encodePayload(make(chan int))
	var errFrame map[string]any
	require.NoError(t, json.Unmarshal(bad, &errFrame))
	assert.Equal(t, "error", errFrame["type"])
}
