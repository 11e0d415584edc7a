// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package progress

import (
	"context"
	"reflect"
	"testing"

	"github.com/tomtom215/studysync/internal/kvstore"
)

func TestStore_SetAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kvstore.NewMemoryStore())

	if done, _ := s.IsComplete(ctx, "C1", "1-1"); done {
		t.Fatal("new store should report incomplete")
	}

	if err := s.SetComplete(ctx, "C1", "1-1", true); err != nil {
		t.Fatalf("SetComplete: %v", err)
	}
	// Setting twice is idempotent.
	if err := s.SetComplete(ctx, "C1", "1-1", true); err != nil {
		t.Fatalf("SetComplete: %v", err)
	}
	if done, _ := s.IsComplete(ctx, "C1", "1-1"); !done {
		t.Error("expected complete")
	}

	if err := s.SetComplete(ctx, "C1", "1-1", false); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if done, _ := s.IsComplete(ctx, "C1", "1-1"); done {
		t.Error("expected cleared")
	}
}

func TestStore_Toggle(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kvstore.NewMemoryStore())

	for i, want := range []bool{true, false, true} {
		got, err := s.Toggle(ctx, "C1", "2-7")
		if err != nil {
			t.Fatalf("Toggle %d: %v", i, err)
		}
		if got != want {
			t.Errorf("Toggle %d = %v, want %v", i, got, want)
		}
	}
}

func TestStore_CompletedKeysScopedByCourse(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kvstore.NewMemoryStore())

	_ = s.SetComplete(ctx, "C1", "2-1", true)
	_ = s.SetComplete(ctx, "C1", "1-9", true)
	_ = s.SetComplete(ctx, "C1:x", "1-1", true)
	_ = s.SetComplete(ctx, "C2", "1-1", true)

	got, err := s.CompletedKeys(ctx, "C1")
	if err != nil {
		t.Fatalf("CompletedKeys: %v", err)
	}
	if want := []string{"1-9", "2-1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("CompletedKeys = %v, want %v", got, want)
	}
}
