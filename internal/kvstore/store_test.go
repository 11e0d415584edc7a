// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package kvstore

import (
	"context"
	"errors"
	"testing"
)

// storeFactories lets every backend run the same behavior tests.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"badger-inmemory": func() Store {
			s, err := OpenBadger("")
			if err != nil {
				t.Fatalf("OpenBadger: %v", err)
			}
			return s
		},
		"badger-disk": func() Store {
			s, err := OpenBadger(t.TempDir())
			if err != nil {
				t.Fatalf("OpenBadger: %v", err)
			}
			return s
		},
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
			}

			if err := s.Set(ctx, "k", []byte("v1")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, "k")
			if err != nil || string(got) != "v1" {
				t.Fatalf("Get = %q, %v", got, err)
			}

			if err := s.Set(ctx, "k", []byte("v2")); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, _ = s.Get(ctx, "k")
			if string(got) != "v2" {
				t.Errorf("overwrite: got %q", got)
			}

			if err := s.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, "k"); err != nil {
				t.Errorf("second Delete should not fail: %v", err)
			}
			if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
				t.Errorf("after delete err = %v", err)
			}
		})
	}
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			_ = s.Set(ctx, "progress:C1:1-1", []byte("1"))
			_ = s.Set(ctx, "progress:C1:1-2", []byte("1"))
			_ = s.Set(ctx, "progress:C2:1-1", []byte("1"))
			_ = s.Set(ctx, "identity:user_id", []byte("abc"))

			got, err := s.List(ctx, "progress:C1:")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("List returned %d entries, want 2: %v", len(got), got)
			}
			if _, ok := got["progress:C1:1-2"]; !ok {
				t.Error("missing progress:C1:1-2")
			}
		})
	}
}

func TestBadgerStore_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	if err := SetJSON(ctx, s, "doc", map[string]int{"n": 3}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenBadger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	var doc map[string]int
	if err := GetJSON(ctx, s, "doc", &doc); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if doc["n"] != 3 {
		t.Errorf("doc = %v", doc)
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf)
	buf[0] = 'x'

	got, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller buffer: %q", got)
	}
}
