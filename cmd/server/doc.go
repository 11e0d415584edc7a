// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

/*
Package main runs the StudySync leaderboard aggregator.

The server keeps per-course progress in memory and pushes a fresh ranking to
every subscribed client after each progress update.

	studysync
	├── messaging-layer
	│   └── websocket-hub
	└── api-layer
	    └── http-server

# Endpoints

	GET /                          server status
	GET /leaderboard/{courseId}    current ranking
	GET /api/v1/courses            courses with participants
	GET /api/v1/health/live        liveness
	GET /api/v1/health/ready       readiness (hub running)
	GET /metrics                   Prometheus metrics
	GET /ws/{userId}               websocket upgrade

# Configuration

Defaults, then an optional YAML file (CONFIG_PATH or
/etc/studysync/config.yaml), then environment variables:

	HTTP_PORT=8000 CORS_ORIGINS=https://study.example.com LOG_LEVEL=debug ./server

SIGINT and SIGTERM stop the supervisor tree. Rankings are not persisted.
*/
package main
