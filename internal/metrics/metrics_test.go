// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/leaderboard/{courseId}", "200"))

	RecordAPIRequest("GET", "/leaderboard/{courseId}", "200", 3*time.Millisecond)
	RecordAPIRequest("GET", "/leaderboard/{courseId}", "200", 4*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/leaderboard/{courseId}", "200"))
	if after-before != 2 {
		t.Errorf("api_requests_total delta = %v, want 2", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != start+2 {
		t.Errorf("after inc = %v, want %v", got, start+2)
	}

	TrackActiveRequest(false)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != start {
		t.Errorf("after dec = %v, want %v", got, start)
	}
}

func TestRecordInbound(t *testing.T) {
	tests := []struct {
		msgType   string
		result    string
		wantLabel string
	}{
		{"progress_update", ResultOK, "progress_update"},
		{"bogus", ResultUnknown, "bogus"},
		{"", ResultMalformed, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.wantLabel+"/"+tt.result, func(t *testing.T) {
			c := WSMessagesReceived.WithLabelValues(tt.wantLabel, tt.result)
			before := testutil.ToFloat64(c)
			RecordInbound(tt.msgType, tt.result)
			if got := testutil.ToFloat64(c) - before; got != 1 {
				t.Errorf("delta = %v, want 1", got)
			}
		})
	}
}

func TestUpdateAggregatorGauges(t *testing.T) {
	UpdateAggregatorGauges(3, 17)
	if got := testutil.ToFloat64(LeaderboardCourses); got != 3 {
		t.Errorf("courses = %v", got)
	}
	if got := testutil.ToFloat64(LeaderboardUsers); got != 17 {
		t.Errorf("users = %v", got)
	}
}

func TestSetSyncChannelConnected(t *testing.T) {
	SetSyncChannelConnected(true)
	if got := testutil.ToFloat64(SyncChannelConnected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}
	SetSyncChannelConnected(false)
	if got := testutil.ToFloat64(SyncChannelConnected); got != 0 {
		t.Errorf("connected = %v, want 0", got)
	}
}

func TestRecordRanking(t *testing.T) {
	RecordRanking(50*time.Microsecond, 12)
	if n := testutil.CollectAndCount(LeaderboardRankingDuration); n != 1 {
		t.Errorf("CollectAndCount = %d, want 1", n)
	}
}
