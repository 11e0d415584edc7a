// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

// Package leaderboard holds per-course completion aggregates for every user and
// turns them into ranked snapshots.
//
// Each course has its own lock; mutations within a course are serialized and
// different courses proceed in parallel. Every mutation rebuilds the ranking as
// a fresh slice and hands it to the Publisher before releasing the course lock,
// so subscribers see one course's snapshots in mutation order.
package leaderboard

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/metrics"
	"github.com/tomtom215/studysync/internal/models"
)

// DefaultUsername is shown for users that never supplied a name.
const DefaultUsername = "Anonymous"

// ErrInvalidUpdate is returned when an update lacks a user, course or fileKey.
var ErrInvalidUpdate = errors.New("leaderboard: invalid update")

// Publisher receives every snapshot produced by a mutation. It is called with
// the course lock held and must not block or call back into the Aggregator.
type Publisher interface {
	PublishSnapshot(snap models.LeaderboardSnapshot)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(models.LeaderboardSnapshot)

// PublishSnapshot calls f(snap).
func (f PublisherFunc) PublishSnapshot(snap models.LeaderboardSnapshot) { f(snap) }

// Update is one progress_update applied on behalf of UserID.
type Update struct {
	UserID     string
	CourseID   string
	FileKey    string
	IsComplete bool
	Username   string
	// Total replaces the stored total when positive.
	Total int
}

type participant struct {
	username   string
	completed  map[string]struct{}
	total      int
	lastUpdate time.Time
}

type course struct {
	mu           sync.Mutex
	id           string
	participants map[string]*participant
	studyItems   map[string][]string
}

// Aggregator owns all course aggregates.
type Aggregator struct {
	mu      sync.RWMutex
	courses map[string]*course

	usersMu sync.RWMutex
	users   map[string]string

	publisher Publisher
	now       func() time.Time
}

// New creates an aggregator. A nil publisher discards snapshots.
func New(publisher Publisher) *Aggregator {
	if publisher == nil {
		publisher = PublisherFunc(func(models.LeaderboardSnapshot) {})
	}
	return &Aggregator{
		courses:   make(map[string]*course),
		users:     make(map[string]string),
		publisher: publisher,
		now:       time.Now,
	}
}

func (a *Aggregator) getOrCreateCourse(courseID string) *course {
	a.mu.RLock()
	c, ok := a.courses[courseID]
	a.mu.RUnlock()
	if ok {
		return c
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok = a.courses[courseID]; ok {
		return c
	}
	c = &course{
		id:           courseID,
		participants: make(map[string]*participant),
		studyItems:   make(map[string][]string),
	}
	a.courses[courseID] = c
	return c
}

// RegisterUser records that userID has connected. It returns the last known
// username, or "" if the user has never named itself.
func (a *Aggregator) RegisterUser(userID string) string {
	a.usersMu.Lock()
	name, ok := a.users[userID]
	if !ok {
		a.users[userID] = ""
	}
	a.usersMu.Unlock()

	if !ok {
		a.refreshGauges()
	}
	return name
}

func (a *Aggregator) rememberUsername(userID, name string) {
	a.usersMu.Lock()
	_, known := a.users[userID]
	if name != "" || !known {
		a.users[userID] = name
	}
	a.usersMu.Unlock()

	if !known {
		a.refreshGauges()
	}
}

func (a *Aggregator) knownUsername(userID string) string {
	a.usersMu.RLock()
	defer a.usersMu.RUnlock()
	return a.users[userID]
}

// ApplyProgress merges one update and publishes the new ranking of its course.
func (a *Aggregator) ApplyProgress(u Update) (models.LeaderboardSnapshot, error) {
	if u.UserID == "" || u.CourseID == "" || u.FileKey == "" {
		return models.LeaderboardSnapshot{}, ErrInvalidUpdate
	}

	name := strings.TrimSpace(u.Username)
	if name == "" {
		name = a.knownUsername(u.UserID)
	}
	if name == "" {
		name = DefaultUsername
	}
	a.rememberUsername(u.UserID, strings.TrimSpace(u.Username))

	c := a.getOrCreateCourse(u.CourseID)

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.participants[u.UserID]
	if !ok {
		p = &participant{completed: make(map[string]struct{})}
		c.participants[u.UserID] = p
	}
	p.username = name
	if u.IsComplete {
		p.completed[u.FileKey] = struct{}{}
	} else {
		delete(p.completed, u.FileKey)
	}
	if u.Total > 0 {
		p.total = u.Total
	}
	p.lastUpdate = a.now().UTC()

	snap := c.snapshotLocked()
	a.publisher.PublishSnapshot(snap)

	metrics.LeaderboardMutations.WithLabelValues("progress").Inc()
	if !ok {
		a.refreshGauges()
	}

	logging.Debug().
		Str("course_id", u.CourseID).
		Str("user_id", u.UserID).
		Str("file_key", u.FileKey).
		Bool("is_complete", u.IsComplete).
		Int("completed", len(p.completed)).
		Int("total", p.total).
		Msg("Applied progress update")

	return snap, nil
}

// SetUsername renames userID in every course it participates in. Rankings are
// not republished; subscribers see the new name on the next snapshot. It
// returns the number of courses touched.
func (a *Aggregator) SetUsername(userID, name string) int {
	name = strings.TrimSpace(name)
	if userID == "" || name == "" {
		return 0
	}
	a.rememberUsername(userID, name)

	touched := 0
	for _, c := range a.courseList() {
		c.mu.Lock()
		if p, ok := c.participants[userID]; ok {
			p.username = name
			touched++
		}
		c.mu.Unlock()
	}

	metrics.LeaderboardMutations.WithLabelValues("rename").Inc()
	return touched
}

// SyncStudyItems replaces the study queue of userID in courseID. It never
// creates a participant and never changes ranking. The stored count is returned.
func (a *Aggregator) SyncStudyItems(userID, courseID string, fileKeys []string) int {
	if userID == "" || courseID == "" {
		return 0
	}
	a.rememberUsername(userID, "")

	seen := make(map[string]struct{}, len(fileKeys))
	items := make([]string, 0, len(fileKeys))
	for _, k := range fileKeys {
		if _, dup := seen[k]; dup || k == "" {
			continue
		}
		seen[k] = struct{}{}
		items = append(items, k)
	}

	c := a.getOrCreateCourse(courseID)
	c.mu.Lock()
	if len(items) == 0 {
		delete(c.studyItems, userID)
	} else {
		c.studyItems[userID] = items
	}
	c.mu.Unlock()

	metrics.LeaderboardMutations.WithLabelValues("study_items").Inc()
	return len(items)
}

// StudyItems returns a copy of the study queue of userID in courseID.
func (a *Aggregator) StudyItems(userID, courseID string) []string {
	a.mu.RLock()
	c, ok := a.courses[courseID]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.studyItems[userID]...)
}

// Snapshot returns the current ranking of courseID. Unknown courses yield an
// empty snapshot.
func (a *Aggregator) Snapshot(courseID string) models.LeaderboardSnapshot {
	var snap models.LeaderboardSnapshot
	a.WithSnapshot(courseID, func(s models.LeaderboardSnapshot) { snap = s })
	return snap
}

// WithSnapshot calls fn with the current ranking of courseID while holding the
// lock that orders that course's publications. fn must not block or call back
// into the Aggregator.
func (a *Aggregator) WithSnapshot(courseID string, fn func(models.LeaderboardSnapshot)) {
	a.mu.RLock()
	c, ok := a.courses[courseID]
	if !ok {
		// Holding the registry read lock keeps a concurrent first update from
		// publishing ahead of this empty snapshot.
		defer a.mu.RUnlock()
		fn(models.LeaderboardSnapshot{CourseID: courseID, Entries: []models.LeaderboardEntry{}})
		return
	}
	a.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.snapshotLocked())
}

// snapshotLocked builds a ranked copy of the course. c.mu must be held.
func (c *course) snapshotLocked() models.LeaderboardSnapshot {
	start := time.Now()

	entries := make([]models.LeaderboardEntry, 0, len(c.participants))
	for userID, p := range c.participants {
		done := len(p.completed)
		entries = append(entries, models.LeaderboardEntry{
			UserID:     userID,
			Username:   p.username,
			Completed:  done,
			Total:      p.total,
			Percentage: Percentage(done, p.total),
			LastUpdate: p.lastUpdate,
		})
	}
	Rank(entries)

	metrics.RecordRanking(time.Since(start), len(entries))
	return models.LeaderboardSnapshot{CourseID: c.id, Entries: entries}
}

func (a *Aggregator) courseList() []*course {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*course, 0, len(a.courses))
	for _, c := range a.courses {
		out = append(out, c)
	}
	return out
}

// Courses lists every course that has participants or study queues, ordered by id.
func (a *Aggregator) Courses() []models.CourseSummary {
	var out []models.CourseSummary
	for _, c := range a.courseList() {
		c.mu.Lock()
		s := models.CourseSummary{
			CourseID:     c.id,
			Participants: len(c.participants),
			StudyQueues:  len(c.studyItems),
		}
		c.mu.Unlock()
		if s.Participants > 0 || s.StudyQueues > 0 {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out
}

// Stats summarizes the aggregator for the status endpoint.
type Stats struct {
	Courses int
	Users   int
}

// Stats returns the number of ranked courses and known users.
func (a *Aggregator) Stats() Stats {
	courses := 0
	for _, c := range a.courseList() {
		c.mu.Lock()
		if len(c.participants) > 0 {
			courses++
		}
		c.mu.Unlock()
	}

	a.usersMu.RLock()
	users := len(a.users)
	a.usersMu.RUnlock()

	return Stats{Courses: courses, Users: users}
}

func (a *Aggregator) refreshGauges() {
	s := a.statsNoCourseLock()
	metrics.UpdateAggregatorGauges(s.Courses, s.Users)
}

// statsNoCourseLock counts without taking course locks, so it is safe to call
// while one is held. Course counts include courses holding only study queues.
func (a *Aggregator) statsNoCourseLock() Stats {
	a.mu.RLock()
	courses := len(a.courses)
	a.mu.RUnlock()

	a.usersMu.RLock()
	users := len(a.users)
	a.usersMu.RUnlock()

	return Stats{Courses: courses, Users: users}
}
