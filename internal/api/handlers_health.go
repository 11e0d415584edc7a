// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/studysync/internal/models"
)

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of the hub
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 200 OK only while the websocket hub is running
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	hubRunning := h.hub != nil && h.hub.IsRunning()

	statusCode := http.StatusOK
	status := "ready"
	if !hubRunning {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	data := map[string]interface{}{
		"hub_running":    hubRunning,
		"ready_to_serve": hubRunning,
		"connections":    0,
		"uptime":         time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		data["connections"] = h.hub.GetClientCount()
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status:   status,
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}
