// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package syncchannel

import "github.com/tomtom215/studysync/internal/metrics"

// pendingUpdate is a progress change issued while offline. The username is
// attached at flush time, not here.
type pendingUpdate struct {
	CourseID   string
	FileKey    string
	IsComplete bool
}

// pendingQueue is a FIFO bounded by limit; when full the oldest item is evicted.
type pendingQueue struct {
	items []pendingUpdate
	limit int
}

func newPendingQueue(limit int) *pendingQueue {
	return &pendingQueue{limit: limit}
}

// push appends u and reports whether an older item was evicted.
func (q *pendingQueue) push(u pendingUpdate) bool {
	evicted := false
	if q.limit > 0 && len(q.items) >= q.limit {
		q.items[0] = pendingUpdate{}
		q.items = q.items[1:]
		evicted = true
		metrics.SyncChannelDroppedUpdates.Inc()
	}
	q.items = append(q.items, u)
	metrics.SyncChannelPendingUpdates.Set(float64(len(q.items)))
	return evicted
}

// drain removes and returns all items in order.
func (q *pendingQueue) drain() []pendingUpdate {
	out := q.items
	q.items = nil
	metrics.SyncChannelPendingUpdates.Set(0)
	return out
}

// requeue puts items back at the front, ahead of anything queued since drain.
func (q *pendingQueue) requeue(items []pendingUpdate) {
	if len(items) == 0 {
		return
	}
	merged := make([]pendingUpdate, 0, len(items)+len(q.items))
	merged = append(merged, items...)
	merged = append(merged, q.items...)
	if q.limit > 0 && len(merged) > q.limit {
		dropped := len(merged) - q.limit
		metrics.SyncChannelDroppedUpdates.Add(float64(dropped))
		merged = merged[dropped:]
	}
	q.items = merged
	metrics.SyncChannelPendingUpdates.Set(float64(len(q.items)))
}

func (q *pendingQueue) size() int {
	return len(q.items)
}
