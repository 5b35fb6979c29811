// Package ws implements the real-time connection layer: a registry owning
// every live WebSocket connection, per-connection serialized writers, and a
// heartbeat monitor evicting half-open peers.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/omkom/live-community-tool-sub000/internal/metrics"
)

// ErrCapacityExceeded is returned by Register when the registry is full.
// The caller must close the transport itself; the rejected connection is
// never tracked.
var ErrCapacityExceeded = errors.New("connection capacity exceeded")

// Conn is one live transport session. The underlying socket is owned
// exclusively by the Conn's writer; all mutation goes through the Registry.
type Conn struct {
	ID          uuid.UUID
	ClientType  string
	RemoteAddr  string
	ConnectedAt time.Time

	socket *websocket.Conn
	writer *clientWriter

	mu            sync.Mutex
	subscriptions map[string]struct{}
	alive         bool
	lastSeen      time.Time
	messageCount  int64
	limiter       *rate.Limiter
}

// Subscribed reports whether the connection subscribed to channel.
func (c *Conn) Subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// IsAlive reports whether the last heartbeat probe was acknowledged.
func (c *Conn) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

// LastSeen returns the time of the last observed activity.
func (c *Conn) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// MessageCount returns the number of accepted inbound messages.
func (c *Conn) MessageCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messageCount
}

func (c *Conn) markAlive(now time.Time) {
	c.mu.Lock()
	c.alive = true
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Conn) markPending() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()
}

// Filter selects a subset of connections. Zero-value fields do not
// constrain; all set fields must match.
type Filter struct {
	ClientType string
	Channel    string
	Predicate  func(*Conn) bool
}

func (f Filter) matches(c *Conn) bool {
	if f.ClientType != "" && c.ClientType != f.ClientType {
		return false
	}
	if f.Channel != "" && !c.Subscribed(f.Channel) {
		return false
	}
	if f.Predicate != nil && !f.Predicate(c) {
		return false
	}
	return true
}

// Options configures a Registry.
type Options struct {
	MaxConnections     int
	MessageMinInterval time.Duration
	MaxPayloadBytes    int
	// OnDisconnect observes every removal (metrics, operator logging).
	OnDisconnect func(conn *Conn, code int, reason string)
}

// Registry owns the set of live connections. All mutation happens through
// its methods under one mutex; iteration hands out point-in-time snapshots
// so the set may mutate freely while a caller walks the result.
type Registry struct {
	clock clockwork.Clock
	opts  Options

	mu    sync.RWMutex
	conns map[uuid.UUID]*Conn
}

func NewRegistry(clock clockwork.Clock, opts Options) *Registry {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 100
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = 4096
	}
	return &Registry{
		clock: clock,
		opts:  opts,
		conns: make(map[uuid.UUID]*Conn),
	}
}

// Register creates a Conn for socket and makes it visible to broadcasts.
// Fails with ErrCapacityExceeded at the configured maximum; the socket is
// left open for the caller to close.
func (r *Registry) Register(socket *websocket.Conn, clientType, remoteAddr string) (*Conn, error) {
	now := r.clock.Now()
	conn := &Conn{
		ID:            uuid.New(),
		ClientType:    clientType,
		RemoteAddr:    remoteAddr,
		ConnectedAt:   now,
		socket:        socket,
		subscriptions: make(map[string]struct{}),
		alive:         true,
		lastSeen:      now,
		limiter:       rate.NewLimiter(rate.Every(r.opts.MessageMinInterval), 1),
	}

	r.mu.Lock()
	if len(r.conns) >= r.opts.MaxConnections {
		r.mu.Unlock()
		metrics.ConnectionsRejectedTotal.Inc()
		slog.Warn("Rejecting connection: registry at capacity", "max_connections", r.opts.MaxConnections, "remote_addr", remoteAddr)
		return nil, ErrCapacityExceeded
	}
	conn.writer = newClientWriter(socket, r.clock)
	r.conns[conn.ID] = conn
	total := len(r.conns)
	r.mu.Unlock()

	socket.SetPongHandler(func(string) error {
		conn.markAlive(r.clock.Now())
		return nil
	})

	metrics.ConnectionsTotal.WithLabelValues(clientType).Inc()
	metrics.ConnectionsCurrent.WithLabelValues(clientType).Inc()
	slog.Info("Connection registered", "connection_id", conn.ID.String(), "client_type", clientType, "remote_addr", remoteAddr, "total_connections", total)
	return conn, nil
}

// Unregister removes the connection and closes its transport. Unknown ids
// are a no-op, so eviction paths may race without harm.
func (r *Registry) Unregister(id uuid.UUID, code int, reason string) {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, id)
	remaining := len(r.conns)
	r.mu.Unlock()

	conn.writer.stopGraceful(code, reason)

	metrics.ConnectionsCurrent.WithLabelValues(conn.ClientType).Dec()
	metrics.DisconnectsTotal.WithLabelValues(reason).Inc()
	slog.Info("Connection unregistered", "connection_id", id.String(), "client_type", conn.ClientType, "reason", reason, "remaining_connections", remaining)

	if r.opts.OnDisconnect != nil {
		r.opts.OnDisconnect(conn, code, reason)
	}
}

// Send serializes payload and writes it to the named connection.
// Returns false when the connection is gone or cannot accept the frame;
// the caller interprets false as "connection is dead — unregister it."
func (r *Registry) Send(id uuid.UUID, payload any) bool {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.writer.trySend(encodePayload(payload))
}

// Snapshot returns a point-in-time copy of the connections matching filter.
// Later registry mutations are not reflected in the returned slice.
func (r *Registry) Snapshot(filter Filter) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		if filter.matches(conn) {
			matched = append(matched, conn)
		}
	}
	return matched
}

// Subscribe adds channel to the connection's subscription set.
func (r *Registry) Subscribe(id uuid.UUID, channel string) {
	if conn, ok := r.get(id); ok {
		conn.mu.Lock()
		conn.subscriptions[channel] = struct{}{}
		conn.mu.Unlock()
	}
}

// Unsubscribe removes channel from the connection's subscription set.
func (r *Registry) Unsubscribe(id uuid.UUID, channel string) {
	if conn, ok := r.get(id); ok {
		conn.mu.Lock()
		delete(conn.subscriptions, channel)
		conn.mu.Unlock()
	}
}

// AllowInbound applies the boundary checks to one inbound message: payload
// size ceiling, then the minimum inter-message interval. Rejected messages
// are dropped silently; this is load-shedding, not an error the peer sees.
func (r *Registry) AllowInbound(conn *Conn, size int) bool {
	if size > r.opts.MaxPayloadBytes {
		metrics.MessagesDroppedTotal.WithLabelValues("oversized").Inc()
		return false
	}

	now := r.clock.Now()
	conn.mu.Lock()
	defer conn.mu.Unlock()

	if !conn.limiter.AllowN(now, 1) {
		metrics.MessagesDroppedTotal.WithLabelValues("throttled").Inc()
		return false
	}
	conn.messageCount++
	conn.lastSeen = now
	return true
}

// Len returns the current connection count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll unregisters every connection, used during shutdown.
func (r *Registry) CloseAll(reason string) {
	for _, conn := range r.Snapshot(Filter{}) {
		r.Unregister(conn.ID, websocket.CloseGoingAway, reason)
	}
}

func (r *Registry) get(id uuid.UUID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// encodePayload turns payload into a text frame. Strings and raw bytes pass
// through untouched. A marshal failure yields an error-shaped frame instead
// of propagating, so one bad payload cannot take down a broadcast.
func encodePayload(payload any) []byte {
	switch p := payload.(type) {
	case string:
		return []byte(p)
	case []byte:
		return p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			slog.Error("Failed to marshal outbound payload", "error", err)
			return []byte(`{"type":"error","value":"payload encoding failed"}`)
		}
		return data
	}
}
