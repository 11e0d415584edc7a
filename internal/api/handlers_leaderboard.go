// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/studysync/internal/models"
	"github.com/tomtom215/studysync/internal/validation"
)

// Status handles GET /. The body is not enveloped:
//
//	{"status":"online","active_users":3,"total_users":12,"courses":2}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	stats := h.agg.Stats()
	status := models.ServerStatus{
		Status:      "online",
		ActiveUsers: h.hub.ActiveUsers(),
		TotalUsers:  stats.Users,
		Courses:     stats.Courses,
	}

	data, err := json.Marshal(status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to encode status", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// Leaderboard handles GET /leaderboard/{courseId}. An unknown course yields an
// empty ranking, the same answer a websocket request_leaderboard gets.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseId")
	if verr := validation.ValidateVar("courseId", courseID, "required,wirekey,max=128"); verr != nil {
		respondValidationError(w, verr)
		return
	}

	snap := h.agg.Snapshot(courseID)
	if snap.Entries == nil {
		snap.Entries = []models.LeaderboardEntry{}
	}
	respondSuccess(w, snap)
}

// Courses handles GET /api/v1/courses.
func (h *Handler) Courses(w http.ResponseWriter, r *http.Request) {
	courses := h.agg.Courses()
	if courses == nil {
		courses = []models.CourseSummary{}
	}
	respondSuccess(w, courses)
}
