// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/models"
	"github.com/tomtom215/studysync/internal/supervisor"
	"github.com/tomtom215/studysync/internal/supervisor/services"
	"github.com/tomtom215/studysync/internal/syncchannel"
	"github.com/tomtom215/studysync/internal/validation"
)

func (c *cli) watchCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "watch <courseId>",
		Short: "Follow the live leaderboard of a course",
		Long: `Connect to the server and print the course leaderboard every time it changes.
With --seed, files already completed locally are published on every connect.
Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID := args[0]
			if verr := validation.ValidateVar("courseId", courseID, wireKeyTag); verr != nil {
				return verr
			}

			cfg := c.channelConfig(courseID)
			cfg.SeedOnConnect = cfg.SeedOnConnect || seed
			ch := c.newChannel(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.watch(ctx, cmd.OutOrStdout(), ch, courseID)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "publish locally completed files on connect")
	return cmd
}

// watch supervises ch and renders every snapshot of courseID until ctx ends.
func (c *cli) watch(ctx context.Context, out io.Writer, ch *syncchannel.Channel, courseID string) error {
	var mu sync.Mutex
	ch.OnStateChange(func(s syncchannel.State) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, "-- %s\n", s)
	})
	ch.OnLeaderboard(func(snap models.LeaderboardSnapshot) {
		if snap.CourseID != courseID {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		renderLeaderboard(out, snap, ch.UserID())
	})

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddMessagingService(services.NewSyncChannelService(ch))

	// The service is not restarted once the channel closes; stop the tree too.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ch.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// renderLeaderboard prints snap as a table, marking the row of self.
func renderLeaderboard(out io.Writer, snap models.LeaderboardSnapshot, self string) {
	fmt.Fprintf(out, "\n%s: %d participant(s)\n", snap.CourseID, len(snap.Entries))
	if len(snap.Entries) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tPROGRESS\tFILES\t")
	for i, e := range snap.Entries {
		marker := ""
		if e.UserID == self {
			marker = "<- you"
		}
		fmt.Fprintf(w, "%d\t%s\t%d%%\t%d/%d\t%s\n", i+1, e.Username, e.Percentage, e.Completed, e.Total, marker)
	}
	_ = w.Flush()
}
