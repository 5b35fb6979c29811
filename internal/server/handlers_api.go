package server

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/omkom/live-community-tool-sub000/internal/planning"
	"github.com/omkom/live-community-tool-sub000/internal/points"
	"github.com/omkom/live-community-tool-sub000/internal/ws"
)

func (s *Server) handleGetPlanning(c echo.Context) error {
	p, err := s.store.GetPlanning()
	if err != nil {
		slog.Error("Failed to load planning", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load planning"})
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handlePutPlanning(c echo.Context) error {
	var p planning.Planning
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid planning document"})
	}
	if err := s.store.SavePlanning(&p); err != nil {
		slog.Error("Failed to save planning", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save planning"})
	}

	s.router.Broadcast(ws.NewUpdate("planning"), ws.Filter{})
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetStatus(c echo.Context) error {
	st, err := s.store.GetStatus()
	if err != nil {
		slog.Error("Failed to load status", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load status"})
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handlePutStatus(c echo.Context) error {
	var st planning.Status
	if err := c.Bind(&st); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status document"})
	}
	if _, err := s.store.UpdateStatus(func(current *planning.Status) { *current = st }); err != nil {
		slog.Error("Failed to save status", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save status"})
	}

	s.router.Broadcast(ws.NewUpdate("status"), ws.Filter{})
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTriggerEffect(c echo.Context) error {
	var body struct {
		Effect string `json:"effect"`
	}
	if err := c.Bind(&body); err != nil || body.Effect == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "effect is required"})
	}

	result := s.bridge.TriggerManual(body.Effect)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetMappings(c echo.Context) error {
	if s.poller == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "twitch integration not configured"})
	}
	return c.JSON(http.StatusOK, s.poller.Effects().Mappings())
}

func (s *Server) handlePutMappings(c echo.Context) error {
	if s.poller == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "twitch integration not configured"})
	}

	var mappings []points.Mapping
	if err := c.Bind(&mappings); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid mapping table"})
	}

	s.poller.Effects().Configure(mappings)
	slog.Info("Effect mappings replaced", "count", len(mappings))
	return c.JSON(http.StatusOK, map[string]int{"count": s.poller.Effects().Len()})
}

func (s *Server) handlePutTiers(c echo.Context) error {
	if s.poller == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "twitch integration not configured"})
	}

	var body struct {
		Tiers    []points.CostTier `json:"tiers"`
		Fallback string            `json:"fallback"`
	}
	if err := c.Bind(&body); err != nil || body.Fallback == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "tiers and fallback are required"})
	}

	s.poller.Effects().ConfigureTiers(body.Tiers, body.Fallback)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMonitorStatus(c echo.Context) error {
	if s.poller == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "twitch integration not configured"})
	}
	return c.JSON(http.StatusOK, s.poller.GetStatus())
}

func (s *Server) handleMonitorStart(c echo.Context) error {
	if s.poller == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "twitch integration not configured"})
	}

	if err := s.poller.Start(c.Request().Context()); err != nil {
		slog.Error("Failed to start redemption polling", "error", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, s.poller.GetStatus())
}

func (s *Server) handleMonitorStop(c echo.Context) error {
	if s.poller == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "twitch integration not configured"})
	}

	s.poller.Stop()
	return c.JSON(http.StatusOK, s.poller.GetStatus())
}

func (s *Server) handleMonitorClearSeen(c echo.Context) error {
	if s.poller == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "twitch integration not configured"})
	}

	s.poller.ClearSeen()
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
