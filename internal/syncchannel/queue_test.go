// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package syncchannel

import "testing"

func keys(items []pendingUpdate) []string {
	out := make([]string, len(items))
	for i, u := range items {
		out[i] = u.FileKey
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPendingQueue_FIFO(t *testing.T) {
	q := newPendingQueue(10)
	for _, k := range []string{"a", "b", "c"} {
		if q.push(pendingUpdate{CourseID: "C1", FileKey: k, IsComplete: true}) {
			t.Fatalf("push %s evicted", k)
		}
	}
	if q.size() != 3 {
		t.Fatalf("size = %d", q.size())
	}

	got := keys(q.drain())
	if !equal(got, []string{"a", "b", "c"}) {
		t.Errorf("drain = %v", got)
	}
	if q.size() != 0 {
		t.Errorf("size after drain = %d", q.size())
	}
}

func TestPendingQueue_DropOldest(t *testing.T) {
	q := newPendingQueue(2)
	q.push(pendingUpdate{FileKey: "a"})
	q.push(pendingUpdate{FileKey: "b"})
	if !q.push(pendingUpdate{FileKey: "c"}) {
		t.Error("third push into a full queue should evict")
	}

	if got := keys(q.drain()); !equal(got, []string{"b", "c"}) {
		t.Errorf("drain = %v, want [b c]", got)
	}
}

func TestPendingQueue_Requeue(t *testing.T) {
	q := newPendingQueue(3)
	q.push(pendingUpdate{FileKey: "a"})
	q.push(pendingUpdate{FileKey: "b"})
	failed := q.drain()

	q.push(pendingUpdate{FileKey: "c"})
	q.push(pendingUpdate{FileKey: "d"})
	q.requeue(failed)

	// a is the oldest and falls off the bound.
	if got := keys(q.drain()); !equal(got, []string{"b", "c", "d"}) {
		t.Errorf("drain = %v, want [b c d]", got)
	}

	q.requeue(nil)
	if q.size() != 0 {
		t.Errorf("requeue(nil) changed size to %d", q.size())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		State(42):    "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
