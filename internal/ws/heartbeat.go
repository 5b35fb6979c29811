package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/omkom/live-community-tool-sub000/internal/metrics"
)

// HeartbeatMonitor probes every registered connection on a fixed interval
// and evicts peers that never acknowledge. Each connection is in one of two
// states: alive (last probe acked) or pending (probe outstanding). A
// connection still pending when the next tick fires is treated as gone —
// this catches half-open TCP sessions that never surface a close event.
// Worst-case detection latency is two intervals.
type HeartbeatMonitor struct {
	registry *Registry
	clock    clockwork.Clock
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewHeartbeatMonitor(registry *Registry, clock clockwork.Clock, interval time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		registry: registry,
		clock:    clock,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the probe loop.
func (m *HeartbeatMonitor) Start() {
	go m.run()
}

// Stop terminates the probe loop. Idempotent; blocks until the loop exits.
func (m *HeartbeatMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
}

func (m *HeartbeatMonitor) run() {
	defer close(m.done)

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			m.tick()
		case <-m.stopCh:
			return
		}
	}
}

func (m *HeartbeatMonitor) tick() {
	for _, conn := range m.registry.Snapshot(Filter{}) {
		if !conn.IsAlive() {
			// Previous probe was never acknowledged.
			slog.Info("Evicting unresponsive connection", "connection_id", conn.ID.String(), "client_type", conn.ClientType, "last_seen", conn.LastSeen())
			metrics.HeartbeatEvictionsTotal.Inc()
			m.registry.Unregister(conn.ID, websocket.CloseGoingAway, "heartbeat timeout")
			continue
		}

		conn.markPending()
		if !conn.writer.tryPing() {
			// A probe that cannot even be enqueued is treated like a missed
			// ack; there is no retry within a cycle.
			metrics.HeartbeatEvictionsTotal.Inc()
			m.registry.Unregister(conn.ID, websocket.CloseGoingAway, "heartbeat probe failed")
		}
	}
}
