// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package models

import "time"

// LeaderboardEntry is one ranked row. It is derived from the aggregate on every
// mutation and never stored.
type LeaderboardEntry struct {
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// LeaderboardSnapshot is an immutable ranking of one course. Entries are in rank
// order; index 0 is rank 1.
type LeaderboardSnapshot struct {
	CourseID string             `json:"courseId"`
	Entries  []LeaderboardEntry `json:"leaderboard"`
}

// RankOf returns the 1-based rank of userID, or false if the user has no entry.
func (s LeaderboardSnapshot) RankOf(userID string) (int, bool) {
	for i := range s.Entries {
		if s.Entries[i].UserID == userID {
			return i + 1, true
		}
	}
	return 0, false
}

// Message wraps the snapshot as a leaderboard_update frame.
func (s LeaderboardSnapshot) Message() LeaderboardUpdateMessage {
	entries := s.Entries
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	return LeaderboardUpdateMessage{
		Type:        MessageTypeLeaderboardUpdate,
		CourseID:    s.CourseID,
		Leaderboard: entries,
	}
}

// CourseSummary describes one course known to the aggregator.
type CourseSummary struct {
	CourseID     string `json:"courseId"`
	Participants int    `json:"participants"`
	StudyQueues  int    `json:"studyQueues"`
}

// ServerStatus is returned by the root status endpoint.
type ServerStatus struct {
	Status      string `json:"status"`
	ActiveUsers int    `json:"active_users"`
	TotalUsers  int    `json:"total_users"`
	Courses     int    `json:"courses"`
}
