package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(c echo.Context) error {
	// Readiness means the data files are reachable; the Twitch side is
	// optional and its health is reported, not gating.
	if _, err := s.store.GetStatus(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
	}

	body := map[string]any{
		"status":      "ok",
		"connections": s.registry.Len(),
	}
	if s.poller != nil {
		body["monitoring"] = s.poller.GetStatus().IsMonitoring
	}
	return c.JSON(http.StatusOK, body)
}
