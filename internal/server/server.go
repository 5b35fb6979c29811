// Package server exposes the companion's HTTP surface: the WebSocket
// endpoint, the planning/status API, effect and monitoring controls, the
// Twitch OAuth flow, and observability endpoints.
package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/omkom/live-community-tool-sub000/internal/bridge"
	"github.com/omkom/live-community-tool-sub000/internal/broadcast"
	"github.com/omkom/live-community-tool-sub000/internal/config"
	"github.com/omkom/live-community-tool-sub000/internal/events"
	"github.com/omkom/live-community-tool-sub000/internal/planning"
	"github.com/omkom/live-community-tool-sub000/internal/points"
	"github.com/omkom/live-community-tool-sub000/internal/twitch"
	"github.com/omkom/live-community-tool-sub000/internal/ws"
)

// ClientMessage is an inbound frame the wire protocol does not interpret,
// forwarded untouched to the host application.
type ClientMessage struct {
	Conn *ws.Conn
	Raw  []byte
}

type Server struct {
	echo     *echo.Echo
	config   *config.Config
	clock    clockwork.Clock
	registry *ws.Registry
	router   *broadcast.Router
	bridge   *bridge.Bridge
	store    *planning.Store

	// Twitch integration; nil when not configured.
	poller *points.Poller
	tokens *twitch.TokenSource
	oauth  *twitch.OAuthFlow

	messages *events.Emitter[ClientMessage]

	stateMu    sync.Mutex
	oauthState string
}

// Deps bundles the collaborators the server fronts.
type Deps struct {
	Registry *ws.Registry
	Router   *broadcast.Router
	Bridge   *bridge.Bridge
	Store    *planning.Store
	Poller   *points.Poller
	Tokens   *twitch.TokenSource
	OAuth    *twitch.OAuthFlow
}

func NewServer(cfg *config.Config, clock clockwork.Clock, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:     e,
		config:   cfg,
		clock:    clock,
		registry: deps.Registry,
		router:   deps.Router,
		bridge:   deps.Bridge,
		store:    deps.Store,
		poller:   deps.Poller,
		tokens:   deps.Tokens,
		oauth:    deps.OAuth,
		messages: events.NewEmitter[ClientMessage](),
	}

	srv.registerRoutes()
	return srv
}

// OnClientMessage subscribes to opaque application messages received over
// the WebSocket.
func (s *Server) OnClientMessage(handler func(ClientMessage)) {
	s.messages.Subscribe(handler)
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
