// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package syncchannel

import (
	"context"
	"errors"
	"strings"

	"github.com/tomtom215/studysync/internal/models"
)

// SendProgressUpdate reports a completion change for fileKey in the current
// course. Offline, the update is queued and sent on the next connect. A write
// error while connected also queues it and drops the connection.
func (ch *Channel) SendProgressUpdate(fileKey string, isComplete bool) error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return ErrClosed
	}
	if ch.courseID == "" {
		ch.mu.Unlock()
		return ErrNoCourse
	}
	u := pendingUpdate{CourseID: ch.courseID, FileKey: fileKey, IsComplete: isComplete}

	if ch.state != Connected {
		ch.queue.push(u)
		ch.mu.Unlock()
		return nil
	}

	msg := models.NewProgressUpdate(u.CourseID, u.FileKey, u.IsComplete, ch.username, ch.total(u.CourseID))
	err := ch.writeLocked(msg)
	changed := false
	if err != nil {
		ch.queue.push(u)
		changed = ch.failLocked(err)
	}
	ch.mu.Unlock()

	if changed {
		ch.notifyState(Disconnected)
	}
	return nil
}

// SetUsername renames the local identity and tells the server when connected.
// It reports false if name is blank, in which case nothing changes.
func (ch *Channel) SetUsername(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	ok, err := ch.identity.SetUsername(ctx, name)
	if err != nil || !ok {
		return ok, err
	}

	ch.mu.Lock()
	ch.username = name
	changed := false
	if ch.state == Connected {
		if werr := ch.writeLocked(models.SetUsernameMessage{Type: models.MessageTypeSetUsername, Username: name}); werr != nil {
			changed = ch.failLocked(werr)
		}
	}
	ch.mu.Unlock()

	if changed {
		ch.notifyState(Disconnected)
	}
	return true, nil
}

// RequestLeaderboardUpdate asks the server for the current course ranking. It
// is a no-op while offline; the next connect requests it anyway.
func (ch *Channel) RequestLeaderboardUpdate() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return ErrClosed
	}
	if ch.courseID == "" {
		ch.mu.Unlock()
		return ErrNoCourse
	}
	if ch.state != Connected {
		ch.mu.Unlock()
		return ErrNotConnected
	}
	err := ch.writeLocked(requestLeaderboard(ch.courseID))
	changed := false
	if err != nil {
		changed = ch.failLocked(err)
	}
	ch.mu.Unlock()

	if changed {
		ch.notifyState(Disconnected)
	}
	return err
}

// SyncStudyItems replaces the server-side study queue for the current course.
// It is not queued offline.
func (ch *Channel) SyncStudyItems(fileKeys []string) error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return ErrClosed
	}
	if ch.courseID == "" {
		ch.mu.Unlock()
		return ErrNoCourse
	}
	if ch.state != Connected {
		ch.mu.Unlock()
		return ErrNotConnected
	}
	if fileKeys == nil {
		fileKeys = []string{}
	}
	msg := models.SyncStudyItemsMessage{
		Type:     models.MessageTypeSyncStudyItems,
		CourseID: ch.courseID,
		FileKeys: fileKeys,
	}
	err := ch.writeLocked(msg)
	changed := false
	if err != nil {
		changed = ch.failLocked(err)
	}
	ch.mu.Unlock()

	if changed {
		ch.notifyState(Disconnected)
	}
	return err
}

// SetCourse changes the course whose leaderboard is tracked. The previous
// snapshot is discarded and, when connected, the new one is requested at once.
func (ch *Channel) SetCourse(courseID string) error {
	courseID = strings.TrimSpace(courseID)

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return ErrClosed
	}
	same := ch.courseID == courseID
	ch.courseID = courseID
	connected := ch.state == Connected
	ch.mu.Unlock()

	if !same {
		ch.lbMu.Lock()
		ch.lbCourse = courseID
		ch.leaderboard = models.LeaderboardSnapshot{}
		ch.hasBoard = false
		ch.lbMu.Unlock()
	}

	if connected && courseID != "" {
		if err := ch.RequestLeaderboardUpdate(); err != nil && !errors.Is(err, ErrNotConnected) {
			return err
		}
	}
	return nil
}

// CourseID returns the current course.
func (ch *Channel) CourseID() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.courseID
}

// Leaderboard returns the last snapshot received for the current course. The
// second result is false until one has arrived.
func (ch *Channel) Leaderboard() (models.LeaderboardSnapshot, bool) {
	ch.lbMu.RLock()
	defer ch.lbMu.RUnlock()
	return ch.leaderboard, ch.hasBoard
}

// CurrentUserRank returns the local user's 1-based rank in the last snapshot of
// the current course.
func (ch *Channel) CurrentUserRank() (int, bool) {
	ch.mu.Lock()
	userID := ch.userID
	ch.mu.Unlock()

	ch.lbMu.RLock()
	defer ch.lbMu.RUnlock()
	if !ch.hasBoard || userID == "" {
		return 0, false
	}
	return ch.leaderboard.RankOf(userID)
}

// UserID returns the local user id, or "" before Start.
func (ch *Channel) UserID() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.userID
}

// Username returns the name attached to outgoing updates.
func (ch *Channel) Username() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.username
}

// State returns the connection state.
func (ch *Channel) State() State {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// IsConnected reports whether the channel is in the Connected state.
func (ch *Channel) IsConnected() bool {
	return ch.State() == Connected
}

// QueueDepth returns the number of updates waiting for a connection.
func (ch *Channel) QueueDepth() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.queue.size()
}

// Close stops the run loop and closes the connection. It is safe to call more
// than once and before Start.
func (ch *Channel) Close() error {
	ch.closeOnce.Do(func() {
		ch.mu.Lock()
		started := ch.started
		ch.closed = true
		ch.mu.Unlock()

		close(ch.stop)
		if started {
			ch.cancel()
			<-ch.done
			return
		}
		ch.shutdown()
		close(ch.done)
	})
	return nil
}

// Done is closed when the run loop has exited.
func (ch *Channel) Done() <-chan struct{} {
	return ch.done
}
