// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/studysync/internal/syncchannel"
)

// channelConfig maps the client section of the configuration onto a Sync
// Channel for courseID.
func (c *cli) channelConfig(courseID string) syncchannel.Config {
	cfg := syncchannel.DefaultConfig()
	cfg.ServerURL = c.cfg.ServerURL
	cfg.CourseID = courseID
	cfg.ReconnectDelay = c.cfg.ReconnectDelay
	cfg.PollInterval = c.cfg.PollInterval
	cfg.QueueLimit = c.cfg.QueueLimit
	cfg.SeedOnConnect = c.cfg.SeedOnConnect
	return cfg
}

func (c *cli) newChannel(cfg syncchannel.Config) *syncchannel.Channel {
	return syncchannel.New(cfg, c.identity,
		syncchannel.WithTotalFunc(c.catalog.Total),
		syncchannel.WithCompletionSource(c.progress),
	)
}

// dial starts a channel and waits up to --timeout for it to connect. The
// returned channel is always non-nil and must be closed; connected reports
// whether the server answered in time.
func (c *cli) dial(ctx context.Context, courseID string) (ch *syncchannel.Channel, connected bool, err error) {
	ch = c.newChannel(c.channelConfig(courseID))

	up := make(chan struct{}, 1)
	ch.OnStateChange(func(s syncchannel.State) {
		if s == syncchannel.Connected {
			select {
			case up <- struct{}{}:
			default:
			}
		}
	})

	if err := ch.Start(ctx); err != nil {
		return ch, false, fmt.Errorf("start sync channel: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	select {
	case <-up:
		return ch, true, nil
	case <-waitCtx.Done():
		return ch, ch.IsConnected(), nil
	}
}
