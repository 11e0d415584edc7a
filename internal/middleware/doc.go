// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

/*
Package middleware provides HTTP middleware for the aggregator's REST surface.

  - RequestID: X-Request-ID propagation into the response and the logging context
  - PrometheusMetrics: request count, latency and in-flight gauge per route pattern

Both are plain http.HandlerFunc wrappers; the api package adapts them to chi:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

The websocket route is registered outside PrometheusMetrics because the metrics
response writer cannot be hijacked.
*/
package middleware
