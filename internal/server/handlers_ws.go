package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/omkom/live-community-tool-sub000/internal/metrics"
	"github.com/omkom/live-community-tool-sub000/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for OBS browser source
	},
}

// hardReadLimit caps a single frame well above the configured payload
// ceiling; gorilla drops the connection past this point, while the
// configured ceiling only drops the message.
const hardReadLimit = 1 << 20

func (s *Server) handleWebSocket(c echo.Context) error {
	clientType := c.QueryParam("type")
	if clientType == "" {
		clientType = "unknown"
	}

	socket, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	conn, err := s.registry.Register(socket, clientType, c.RealIP())
	if errors.Is(err, ws.ErrCapacityExceeded) {
		closeMsg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server at capacity")
		_ = socket.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = socket.Close()
		return nil
	}
	if err != nil {
		_ = socket.Close()
		return nil
	}

	s.registry.Send(conn.ID, ws.NewInit(conn.ID.String(), s.clock.Now()))

	socket.SetReadLimit(hardReadLimit)

	// Read pump — blocks until the connection closes.
	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			break
		}
		s.handleInbound(conn, data)
	}

	s.registry.Unregister(conn.ID, websocket.CloseNormalClosure, "connection closed")
	return nil
}

func (s *Server) handleInbound(conn *ws.Conn, data []byte) {
	// Boundary checks first: oversized or too-frequent messages are shed
	// silently; the peer is never told.
	if !s.registry.AllowInbound(conn, len(data)) {
		return
	}

	var msg ws.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		// One malformed frame is discarded; the connection stays open.
		metrics.MessagesDroppedTotal.WithLabelValues("malformed").Inc()
		slog.Debug("Discarding unparseable frame", "connection_id", conn.ID.String(), "error", err)
		return
	}

	switch msg.Type {
	case ws.InboundPing:
		s.registry.Send(conn.ID, ws.NewPong(s.clock.Now()))
	case ws.InboundSubscribe:
		if msg.Channel != "" {
			s.registry.Subscribe(conn.ID, msg.Channel)
		}
	case ws.InboundUnsubscribe:
		if msg.Channel != "" {
			s.registry.Unsubscribe(conn.ID, msg.Channel)
		}
	default:
		s.messages.Emit(ClientMessage{Conn: conn, Raw: data})
	}
}
