// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package leaderboard

import (
	"math"
	"sort"

	"github.com/tomtom215/studysync/internal/models"
)

// Percentage returns round(completed/total*100) clamped to [0,100], or 0 when
// total is not positive. Completed may exceed a client-supplied total.
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	p := int(math.Round(float64(completed) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// Less reports whether a ranks above b: percentage descending, then completed
// descending, then userId ascending.
func Less(a, b models.LeaderboardEntry) bool {
	if a.Percentage != b.Percentage {
		return a.Percentage > b.Percentage
	}
	if a.Completed != b.Completed {
		return a.Completed > b.Completed
	}
	return a.UserID < b.UserID
}

// Rank sorts entries in place into leaderboard order.
func Rank(entries []models.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
}
