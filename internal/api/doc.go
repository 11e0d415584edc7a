// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

/*
Package api exposes the aggregator over HTTP using the chi router.

Routes:

	GET /ws/{userId}             websocket upgrade (see internal/websocket)
	GET /                        {"status":"online","active_users",...}
	GET /leaderboard/{courseId}  APIResponse{data: {courseId, leaderboard}}
	GET /api/v1/courses          APIResponse{data: [CourseSummary]}
	GET /api/v1/health/live      liveness probe
	GET /api/v1/health/ready     readiness probe, 503 while the hub is down
	GET /metrics                 Prometheus exposition

REST routes share an IP-keyed go-chi/httprate limit and go-chi/cors policy
taken from config.SecurityConfig. Browser websocket origins are checked
against the same CORS origin list.
*/
package api
