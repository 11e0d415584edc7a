// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/studysync/internal/logging"
)

// SyncChannel is the lifecycle half of *syncchannel.Channel.
type SyncChannel interface {
	Start(ctx context.Context) error
	Close() error
	Done() <-chan struct{}
}

// SyncChannelService supervises a client's connection to the aggregator. The
// channel reconnects on its own, so Serve only ends when the context does or
// the channel is closed from elsewhere.
type SyncChannelService struct {
	channel SyncChannel
	name    string
}

// NewSyncChannelService creates a new sync channel service wrapper.
func NewSyncChannelService(channel SyncChannel) *SyncChannelService {
	return &SyncChannelService{
		channel: channel,
		name:    "sync-channel",
	}
}

// Serve starts the channel and blocks until ctx is canceled, then closes it.
// A channel cannot be restarted once stopped, so every exit closes it and asks
// suture not to restart the service.
func (s *SyncChannelService) Serve(ctx context.Context) error {
	if err := s.channel.Start(ctx); err != nil {
		_ = s.channel.Close()
		return fmt.Errorf("start sync channel: %w: %w", err, suture.ErrDoNotRestart)
	}

	select {
	case <-ctx.Done():
		if err := s.channel.Close(); err != nil {
			logging.Warn().Err(err).Msg("sync channel close failed")
		}
		return suture.ErrDoNotRestart
	case <-s.channel.Done():
		return errors.Join(errors.New("sync channel stopped"), suture.ErrDoNotRestart)
	}
}

// String implements fmt.Stringer for suture event logs.
func (s *SyncChannelService) String() string {
	return s.name
}
