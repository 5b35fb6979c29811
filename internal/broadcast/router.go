// Package broadcast fans messages out to filtered subsets of the connection
// registry, evicting connections whose sends fail.
package broadcast

import (
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/omkom/live-community-tool-sub000/internal/metrics"
	"github.com/omkom/live-community-tool-sub000/internal/ws"
)

// Result reports how a broadcast went. Sent counts successful enqueues, not
// receipts; delivery is best-effort.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Router fans payloads out across the registry. Failed sends mark the
// connection dead; eviction is deferred until the whole snapshot has been
// walked so one failure cannot disturb the iteration.
type Router struct {
	registry *ws.Registry
	clock    clockwork.Clock
}

func NewRouter(registry *ws.Registry, clock clockwork.Clock) *Router {
	return &Router{registry: registry, clock: clock}
}

// Broadcast sends payload to every connection matching filter.
func (r *Router) Broadcast(payload any, filter ws.Filter) Result {
	start := r.clock.Now()
	metrics.BroadcastsTotal.Inc()

	var result Result
	var dead []*ws.Conn

	for _, conn := range r.registry.Snapshot(filter) {
		if r.registry.Send(conn.ID, payload) {
			result.Sent++
			metrics.BroadcastSendsTotal.WithLabelValues("sent").Inc()
		} else {
			result.Failed++
			metrics.BroadcastSendsTotal.WithLabelValues("failed").Inc()
			dead = append(dead, conn)
		}
	}

	for _, conn := range dead {
		slog.Warn("Evicting connection after failed send", "connection_id", conn.ID.String(), "client_type", conn.ClientType)
		r.registry.Unregister(conn.ID, websocket.CloseGoingAway, "send failed")
	}

	metrics.BroadcastDuration.Observe(r.clock.Since(start).Seconds())
	return result
}

// SendToType broadcasts to connections whose client type matches exactly.
func (r *Router) SendToType(payload any, clientType string) Result {
	return r.Broadcast(payload, ws.Filter{ClientType: clientType})
}

// SendToChannel broadcasts to connections subscribed to channel.
func (r *Router) SendToChannel(payload any, channel string) Result {
	return r.Broadcast(payload, ws.Filter{Channel: channel})
}
