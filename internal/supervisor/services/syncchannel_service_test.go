// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/studysync/internal/identity"
	"github.com/tomtom215/studysync/internal/kvstore"
	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/syncchannel"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

type fakeChannel struct {
	startErr error
	done     chan struct{}
	once     sync.Once
	closes   int
	mu       sync.Mutex
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{done: make(chan struct{})}
}

func (f *fakeChannel) Start(ctx context.Context) error { return f.startErr }

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeChannel) Done() <-chan struct{} { return f.done }

var _ suture.Service = (*SyncChannelService)(nil)

func TestSyncChannelService_ClosesOnCancel(t *testing.T) {
	ch := newFakeChannel()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- NewSyncChannelService(ch).Serve(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("expected ErrDoNotRestart, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closes != 1 {
		t.Errorf("Close called %d times, want 1", ch.closes)
	}
}

func TestSyncChannelService_StartFailure(t *testing.T) {
	ch := newFakeChannel()
	ch.startErr = syncchannel.ErrClosed

	err := NewSyncChannelService(ch).Serve(context.Background())
	if !errors.Is(err, syncchannel.ErrClosed) || !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("expected ErrClosed and ErrDoNotRestart, got %v", err)
	}
}

func TestSyncChannelService_ChannelClosedElsewhere(t *testing.T) {
	ch := newFakeChannel()
	errCh := make(chan error, 1)
	go func() { errCh <- NewSyncChannelService(ch).Serve(context.Background()) }()

	_ = ch.Close()
	if err := <-errCh; !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("expected ErrDoNotRestart, got %v", err)
	}
}

func TestSyncChannelService_RealChannel(t *testing.T) {
	cfg := syncchannel.DefaultConfig()
	cfg.ServerURL = "ws://127.0.0.1:1"
	cfg.CourseID = "C1"
	cfg.ReconnectDelay = 10 * time.Millisecond
	ch := syncchannel.New(cfg, identity.NewStore(kvstore.NewMemoryStore()))

	sup := suture.New("test-sup", suture.Spec{Timeout: 2 * time.Second})
	sup.Add(NewSyncChannelService(ch))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	// Updates are queued while the server is unreachable.
	if err := ch.SendProgressUpdate("1-1", true); err != nil {
		t.Fatalf("SendProgressUpdate: %v", err)
	}

	cancel()
	<-errCh

	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel was not closed by the service")
	}
}
