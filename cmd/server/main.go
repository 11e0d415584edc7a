// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/studysync/internal/api"
	"github.com/tomtom215/studysync/internal/config"
	"github.com/tomtom215/studysync/internal/leaderboard"
	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/metrics"
	"github.com/tomtom215/studysync/internal/supervisor"
	"github.com/tomtom215/studysync/internal/supervisor/services"
	ws "github.com/tomtom215/studysync/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app is the wired server before it is handed to the supervisor.
type app struct {
	hub    *ws.Hub
	agg    *leaderboard.Aggregator
	server *http.Server
}

func newApp(cfg *config.Config) *app {
	hub := ws.NewHubWithConfig(ws.HubConfig{
		BroadcastBuffer:  cfg.WebSocket.BroadcastBuffer,
		ClientSendBuffer: cfg.WebSocket.ClientSendBuffer,
		MaxMessageSize:   cfg.WebSocket.MaxMessageSize,
		MessageRate:      cfg.WebSocket.MessageRate,
		MessageBurst:     cfg.WebSocket.MessageBurst,
		PongWait:         cfg.WebSocket.PongWait,
	})
	agg := leaderboard.New(hub)

	handler := api.NewHandler(agg, hub, cfg)
	router := api.NewRouter(handler, cfg)

	// WriteTimeout stays zero: it would cut hijacked websocket connections.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	return &app{hub: hub, agg: agg, server: server}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Msg("Starting StudySync leaderboard server")
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS_ORIGINS=* lets any website open leaderboard connections; set explicit origins in production")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	a := newApp(cfg)
	tree.AddMessagingService(services.NewWebSocketHubService(a.hub))
	tree.AddAPIService(services.NewHTTPServerService(a.server, cfg.Supervisor.ShutdownTimeout))
	logging.Info().Str("addr", a.server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	stats := a.agg.Stats()
	logging.Info().
		Int("courses", stats.Courses).
		Int("users", stats.Users).
		Msg("Server stopped; in-memory rankings discarded")
}
