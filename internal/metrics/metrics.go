// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Inbound frame results for WSMessagesReceived.
const (
	ResultOK        = "ok"
	ResultMalformed = "malformed"
	ResultInvalid   = "invalid"
	ResultUnknown   = "unknown_type"
	ResultRejected  = "rejected"
)

var (
	// Leaderboard Aggregator Metrics
	LeaderboardCourses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leaderboard_courses_tracked",
			Help: "Number of courses held by the aggregator",
		},
	)

	LeaderboardUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leaderboard_users_known",
			Help: "Number of distinct user ids seen by the aggregator",
		},
	)

	LeaderboardMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_mutations_total",
			Help: "Total number of aggregate mutations",
		},
		[]string{"operation"}, // "progress", "rename", "study_items"
	)

	LeaderboardRankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leaderboard_ranking_duration_seconds",
			Help:    "Time to rebuild one course ranking",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	LeaderboardSnapshotSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leaderboard_snapshot_entries",
			Help:    "Number of entries per published snapshot",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	LeaderboardBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_broadcasts_total",
			Help: "Total number of leaderboard snapshots handed to the hub",
		},
		[]string{"kind"}, // "broadcast", "directed"
	)

	LeaderboardBroadcastDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_broadcast_drops_total",
			Help: "Total number of snapshots or clients dropped during delivery",
		},
		[]string{"reason"}, // "hub_full", "slow_client"
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket frames queued for delivery",
		},
		[]string{"type"},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket frames received",
		},
		[]string{"type", "result"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	WSInboundThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_inbound_throttled_total",
			Help: "Inbound frames whose processing waited for the per-connection rate limit",
		},
	)

	WSSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_course_subscriptions",
			Help: "Current number of (connection, course) subscriptions",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Sync Channel (client) Metrics
	SyncChannelPendingUpdates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncchannel_pending_updates",
			Help: "Progress updates queued while disconnected",
		},
	)

	SyncChannelDroppedUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncchannel_dropped_updates_total",
			Help: "Queued progress updates evicted because the queue was full",
		},
	)

	SyncChannelFlushedUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncchannel_flushed_updates_total",
			Help: "Queued progress updates delivered after reconnecting",
		},
	)

	SyncChannelReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncchannel_connect_attempts_total",
			Help: "Connection attempts made by the sync channel",
		},
	)

	SyncChannelConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncchannel_connected",
			Help: "1 while the sync channel holds a live connection",
		},
	)

	// Application Info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordInbound counts one received frame by its type and outcome.
func RecordInbound(messageType, result string) {
	if messageType == "" {
		messageType = "none"
	}
	WSMessagesReceived.WithLabelValues(messageType, result).Inc()
}

// RecordRanking records one ranking rebuild.
func RecordRanking(duration time.Duration, entries int) {
	LeaderboardRankingDuration.Observe(duration.Seconds())
	LeaderboardSnapshotSize.Observe(float64(entries))
}

// UpdateAggregatorGauges sets the course and user gauges.
func UpdateAggregatorGauges(courses, users int) {
	LeaderboardCourses.Set(float64(courses))
	LeaderboardUsers.Set(float64(users))
}

// SetSyncChannelConnected updates the client connection gauge.
func SetSyncChannelConnected(connected bool) {
	if connected {
		SyncChannelConnected.Set(1)
	} else {
		SyncChannelConnected.Set(0)
	}
}
