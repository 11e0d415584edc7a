// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

// Package identity persists the per-device user id and display name.
//
// The user id is a UUIDv4 generated on first use and never regenerated. The
// display name starts as a random Adjective+Noun+N handle and can be renamed.
package identity

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tomtom215/studysync/internal/kvstore"
)

const (
	keyUserID   = "identity:user_id"
	keyUsername = "identity:username"
)

var adjectives = []string{
	"Quick", "Bright", "Clever", "Swift", "Calm", "Bold", "Eager", "Gentle",
	"Happy", "Keen", "Lucky", "Merry", "Noble", "Quiet", "Sharp", "Witty",
}

var nouns = []string{
	"Panda", "Fox", "Owl", "Tiger", "Eagle", "Dolphin", "Falcon", "Koala",
	"Lynx", "Otter", "Raven", "Wolf", "Badger", "Heron", "Puma", "Seal",
}

// Store reads and writes identity values through a kvstore.Store.
type Store struct {
	kv kvstore.Store

	mu       sync.Mutex
	userID   string
	username string
}

// NewStore creates an identity store over kv.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// UserID returns the stored user id, creating and persisting one if absent.
func (s *Store) UserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID != "" {
		return s.userID, nil
	}

	data, err := s.kv.Get(ctx, keyUserID)
	switch {
	case err == nil && len(data) > 0:
		s.userID = string(data)
		return s.userID, nil
	case err != nil && !errors.Is(err, kvstore.ErrNotFound):
		return "", fmt.Errorf("read user id: %w", err)
	}

	id := uuid.New().String()
	if err := s.kv.Set(ctx, keyUserID, []byte(id)); err != nil {
		return "", fmt.Errorf("persist user id: %w", err)
	}
	s.userID = id
	return id, nil
}

// Username returns the stored display name, generating and persisting a random
// one if absent.
func (s *Store) Username(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.username != "" {
		return s.username, nil
	}

	data, err := s.kv.Get(ctx, keyUsername)
	switch {
	case err == nil && len(data) > 0:
		s.username = string(data)
		return s.username, nil
	case err != nil && !errors.Is(err, kvstore.ErrNotFound):
		return "", fmt.Errorf("read username: %w", err)
	}

	name := GenerateUsername()
	if err := s.kv.Set(ctx, keyUsername, []byte(name)); err != nil {
		return "", fmt.Errorf("persist username: %w", err)
	}
	s.username = name
	return name, nil
}

// SetUsername trims and persists name. It reports false, without error, when
// the trimmed name is empty and nothing was changed.
func (s *Store) SetUsername(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, keyUsername, []byte(name)); err != nil {
		return false, fmt.Errorf("persist username: %w", err)
	}
	s.username = name
	return true, nil
}

// GenerateUsername returns a handle such as "QuietOtter417".
func GenerateUsername() string {
	adj := adjectives[rand.IntN(len(adjectives))]
	noun := nouns[rand.IntN(len(nouns))]
	n := rand.IntN(999) + 1
	return adj + noun + strconv.Itoa(n)
}
