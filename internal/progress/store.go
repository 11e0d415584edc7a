// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

// Package progress is the client-local record of completed course materials.
// It is the source of truth for "is this file done"; the leaderboard is only a
// shared projection of it.
package progress

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/studysync/internal/kvstore"
)

const keyPrefix = "progress:"

// Record is the stored value for one completed file.
type Record struct {
	CompletedAt time.Time `json:"completedAt"`
}

// Store maps (courseId, fileKey) to a completion flag.
type Store struct {
	kv kvstore.Store
}

// NewStore creates a progress store over kv.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

func coursePrefix(courseID string) string {
	return keyPrefix + url.QueryEscape(courseID) + ":"
}

func recordKey(courseID, fileKey string) string {
	return coursePrefix(courseID) + url.QueryEscape(fileKey)
}

// SetComplete records or clears completion. Clearing removes the record so only
// completed files occupy storage.
func (s *Store) SetComplete(ctx context.Context, courseID, fileKey string, complete bool) error {
	key := recordKey(courseID, fileKey)
	if !complete {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear progress: %w", err)
		}
		return nil
	}
	if err := kvstore.SetJSON(ctx, s.kv, key, Record{CompletedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("record progress: %w", err)
	}
	return nil
}

// IsComplete reports whether fileKey is marked done in courseID.
func (s *Store) IsComplete(ctx context.Context, courseID, fileKey string) (bool, error) {
	_, err := s.kv.Get(ctx, recordKey(courseID, fileKey))
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read progress: %w", err)
	}
	return true, nil
}

// Toggle flips completion state and returns the new value.
func (s *Store) Toggle(ctx context.Context, courseID, fileKey string) (bool, error) {
	done, err := s.IsComplete(ctx, courseID, fileKey)
	if err != nil {
		return false, err
	}
	if err := s.SetComplete(ctx, courseID, fileKey, !done); err != nil {
		return false, err
	}
	return !done, nil
}

// CompletedKeys returns the completed fileKeys of courseID in sorted order.
func (s *Store) CompletedKeys(ctx context.Context, courseID string) ([]string, error) {
	prefix := coursePrefix(courseID)
	entries, err := s.kv.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		fileKey, err := url.QueryUnescape(strings.TrimPrefix(k, prefix))
		if err != nil {
			continue
		}
		keys = append(keys, fileKey)
	}
	sort.Strings(keys)
	return keys, nil
}
