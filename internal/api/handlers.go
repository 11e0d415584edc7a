// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/studysync/internal/config"
	"github.com/tomtom215/studysync/internal/leaderboard"
	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/models"
	"github.com/tomtom215/studysync/internal/validation"
	ws "github.com/tomtom215/studysync/internal/websocket"
)

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, websocket upgrade (this file)
//   - handlers_helpers.go: JSON envelope helpers
//   - handlers_health.go: liveness and readiness probes
//   - handlers_leaderboard.go: status, leaderboard and course listing
type Handler struct {
	agg        *leaderboard.Aggregator
	hub        *ws.Hub
	dispatcher *ws.Dispatcher
	config     *config.Config
	startTime  time.Time
}

// NewHandler creates a new API handler.
//
// Example:
//
//	hub := ws.NewHubWithConfig(hubCfg)
//	agg := leaderboard.New(hub)
//	handler := api.NewHandler(agg, hub, cfg)
//	router := api.NewRouter(handler, cfg)
//	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: router.SetupChi()}
func NewHandler(agg *leaderboard.Aggregator, hub *ws.Hub, cfg *config.Config) *Handler {
	return &Handler{
		agg:        agg,
		hub:        hub,
		dispatcher: ws.NewDispatcher(hub, agg),
		config:     cfg,
		startTime:  time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Sync Channel
// clients are not browsers and send no Origin header; those are accepted.
// Browser origins must match security.cors_origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if h.config == nil {
		return true
	}

	for _, allowedOrigin := range h.config.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	// Same-host pages are always allowed, matching gorilla's default check.
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades GET /ws/{userId} into a leaderboard connection.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil || !h.hub.IsRunning() {
		logging.Ctx(r.Context()).Warn().Msg("WebSocket connection rejected: hub not running")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	userID := chi.URLParam(r, "userId")
	if verr := validation.ValidateVar("userId", userID, "required,wirekey,max=128"); verr != nil {
		respondValidationError(w, verr)
		return
	}

	ctx := logging.ContextWithUserID(r.Context(), userID)
	log := logging.Ctx(ctx)

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn, userID, h.dispatcher)
	if err := h.hub.RegisterClient(ctx, client); err != nil {
		log.Warn().Err(err).Msg("WebSocket client not registered")
		_ = conn.Close()
		return
	}
	log.Debug().Uint64("client_id", client.ID()).Msg("websocket upgraded")
	h.dispatcher.Welcome(client)
	client.Start()
}

func respondValidationError(w http.ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondAPIError(w, http.StatusBadRequest, &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}, nil)
}
