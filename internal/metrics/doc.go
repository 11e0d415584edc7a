// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

/*
Package metrics defines the Prometheus instrumentation for the aggregator server
and the syncctl client.

All collectors register with the default registry through promauto, so importing
the package is enough; the server exposes them at /metrics:

	curl http://localhost:8000/metrics

# Available Metrics

Leaderboard:
  - leaderboard_courses_tracked, leaderboard_users_known (gauges)
  - leaderboard_mutations_total{operation}
  - leaderboard_ranking_duration_seconds, leaderboard_snapshot_entries (histograms)
  - leaderboard_broadcasts_total{kind}, leaderboard_broadcast_drops_total{reason}

WebSocket:
  - websocket_connections, websocket_course_subscriptions (gauges)
  - websocket_messages_received_total{type,result}
  - websocket_messages_sent_total{type}
  - websocket_errors_total{error_type}

API:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests, api_rate_limit_hits_total{endpoint}

Sync Channel (client process):
  - syncchannel_pending_updates, syncchannel_connected (gauges)
  - syncchannel_dropped_updates_total, syncchannel_flushed_updates_total
  - syncchannel_connect_attempts_total
*/
package metrics
