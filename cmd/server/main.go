package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/omkom/live-community-tool-sub000/internal/bridge"
	"github.com/omkom/live-community-tool-sub000/internal/broadcast"
	"github.com/omkom/live-community-tool-sub000/internal/chat"
	"github.com/omkom/live-community-tool-sub000/internal/config"
	"github.com/omkom/live-community-tool-sub000/internal/logging"
	"github.com/omkom/live-community-tool-sub000/internal/planning"
	"github.com/omkom/live-community-tool-sub000/internal/points"
	"github.com/omkom/live-community-tool-sub000/internal/server"
	"github.com/omkom/live-community-tool-sub000/internal/twitch"
	"github.com/omkom/live-community-tool-sub000/internal/ws"
)

func setupConfig() *config.Config {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runGracefulShutdown(srv *server.Server, registry *ws.Registry, monitor *ws.HeartbeatMonitor, poller *points.Poller, cancelChat context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if poller != nil {
			poller.Stop()
		}
		cancelChat()
		monitor.Stop()
		registry.CloseAll("server shutting down")

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	registry := ws.NewRegistry(clock, ws.Options{
		MaxConnections:     cfg.MaxConnections,
		MessageMinInterval: cfg.MessageMinInterval,
		MaxPayloadBytes:    cfg.MaxPayloadBytes,
		OnDisconnect: func(conn *ws.Conn, code int, reason string) {
			slog.Debug("Connection closed", "connection_id", conn.ID.String(), "code", code, "reason", reason, "messages", conn.MessageCount())
		},
	})
	router := broadcast.NewRouter(registry, clock)
	effectBridge := bridge.New(router, clock)

	monitor := ws.NewHeartbeatMonitor(registry, clock, cfg.HeartbeatInterval)
	monitor.Start()

	store := planning.NewStore(cfg.PlanningFile, cfg.StatusFile)

	chatCtx, cancelChat := context.WithCancel(context.Background())

	var (
		poller      *points.Poller
		tokenSource *twitch.TokenSource
		oauthFlow   *twitch.OAuthFlow
	)
	if cfg.TwitchEnabled() {
		tokenSource = twitch.NewTokenSource(&twitch.FileTokenStore{Path: cfg.TokenFile}, cfg.TwitchClientID, cfg.TwitchClientSecret)
		oauthFlow = twitch.NewOAuthFlow(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI)
		helix := twitch.NewHelixClient(tokenSource, cfg.TwitchClientID)

		poller = points.NewPoller(helix, clock, cfg.PollInterval, cfg.RedemptionWindow, points.NewEffectTable())
		poller.OnRedemption(effectBridge.HandleRedemption)
		poller.OnError(func(err error) {
			router.SendToType(map[string]any{"type": "monitor_error", "error": err.Error()}, bridge.ClientTypeAdmin)
		})
		poller.OnMonitoringStarted(func(broadcasterID string) {
			router.SendToType(map[string]any{"type": "monitor_started", "broadcasterId": broadcasterID}, bridge.ClientTypeAdmin)
		})
		poller.OnMonitoringStopped(func(reason string) {
			router.SendToType(map[string]any{"type": "monitor_stopped", "reason": reason}, bridge.ClientTypeAdmin)
		})

		listener := chat.NewListener(cfg.TwitchChannel, poller.Effects(), effectBridge)
		go listener.Run(chatCtx)
	} else {
		slog.Warn("Twitch integration disabled: no credentials configured")
	}

	srv := server.NewServer(cfg, clock, server.Deps{
		Registry: registry,
		Router:   router,
		Bridge:   effectBridge,
		Store:    store,
		Poller:   poller,
		Tokens:   tokenSource,
		OAuth:    oauthFlow,
	})
	srv.OnClientMessage(func(msg server.ClientMessage) {
		slog.Debug("Opaque client message", "connection_id", msg.Conn.ID.String(), "client_type", msg.Conn.ClientType, "size", len(msg.Raw))
	})

	done := runGracefulShutdown(srv, registry, monitor, poller, cancelChat)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
