package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// WebSocket endpoint (client category in ?type=)
	s.echo.GET("/ws", s.handleWebSocket)

	// Planning and status documents
	s.echo.GET("/api/planning", s.handleGetPlanning)
	s.echo.PUT("/api/planning", s.handlePutPlanning)
	s.echo.GET("/api/status", s.handleGetStatus)
	s.echo.PUT("/api/status", s.handlePutStatus)

	// Effects and monitoring controls (operator dashboard)
	s.echo.POST("/api/effect", s.handleTriggerEffect)
	s.echo.GET("/api/effects/mappings", s.handleGetMappings)
	s.echo.PUT("/api/effects/mappings", s.handlePutMappings)
	s.echo.PUT("/api/effects/tiers", s.handlePutTiers)
	s.echo.GET("/api/monitor/status", s.handleMonitorStatus)
	s.echo.POST("/api/monitor/start", s.handleMonitorStart)
	s.echo.POST("/api/monitor/stop", s.handleMonitorStop)
	s.echo.POST("/api/monitor/clear-seen", s.handleMonitorClearSeen)

	// Twitch OAuth flow
	if s.oauth != nil {
		s.echo.GET("/auth/login", s.handleLogin)
		s.echo.GET("/auth/callback", s.handleOAuthCallback)
	}
}
