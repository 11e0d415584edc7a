// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/studysync/internal/catalog"
	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/validation"
)

const wireKeyTag = "required,wirekey,max=128"

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the local user id and display name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := c.identity.UserID(ctx)
			if err != nil {
				return err
			}
			name, err := c.identity.Username(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user id:  %s\nusername: %s\n", id, name)
			return nil
		},
	}
}

func (c *cli) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name>",
		Short: "Change your display name",
		Long: `Change your display name locally and, if the server is reachable, on every
leaderboard you appear in. A blank name is ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ch, connected, err := c.dial(ctx, "")
			defer func() { _ = ch.Close() }()
			if err != nil {
				return err
			}

			changed, err := ch.SetUsername(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case !changed:
				fmt.Fprintln(out, "name unchanged: a display name cannot be blank")
			case connected:
				fmt.Fprintf(out, "renamed to %s\n", ch.Username())
			default:
				fmt.Fprintf(out, "renamed to %s (server unreachable; it will see the new name on your next update)\n", ch.Username())
			}
			return nil
		},
	}
}

func (c *cli) toggleCmd() *cobra.Command {
	var done, undone bool

	cmd := &cobra.Command{
		Use:   "toggle <courseId> <fileKey>",
		Short: "Flip, set or clear completion of one course file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, fileKey := args[0], args[1]
			if verr := validation.ValidateVar("courseId", courseID, wireKeyTag); verr != nil {
				return verr
			}
			if verr := validation.ValidateVar("fileKey", fileKey, "required,wirekey,max=256"); verr != nil {
				return verr
			}

			ctx := cmd.Context()
			var complete bool
			var err error
			switch {
			case done:
				complete = true
				err = c.progress.SetComplete(ctx, courseID, fileKey, true)
			case undone:
				err = c.progress.SetComplete(ctx, courseID, fileKey, false)
			default:
				complete, err = c.progress.Toggle(ctx, courseID, fileKey)
			}
			if err != nil {
				return err
			}

			state := "incomplete"
			if complete {
				state = "complete"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s: %s\n", courseID, fileKey, state)

			ch, connected, err := c.dial(ctx, courseID)
			defer func() { _ = ch.Close() }()
			if err != nil {
				return err
			}
			if err := ch.SendProgressUpdate(fileKey, complete); err != nil {
				return err
			}
			if !connected {
				fmt.Fprintln(out, "server unreachable; saved locally (run `syncctl watch` with client.seed_on_connect to publish)")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&done, "done", false, "mark the file complete")
	cmd.Flags().BoolVar(&undone, "undone", false, "mark the file incomplete")
	cmd.MarkFlagsMutuallyExclusive("done", "undone")
	return cmd
}

func (c *cli) coursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List downloaded courses and your local progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			courses := c.catalog.Courses()
			if len(courses) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no course summaries found under %q\n", c.cfg.CatalogDir)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COURSE\tNAME\tDONE\tTOTAL")
			for _, course := range courses {
				done, err := c.completedIn(cmd, course)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", course.ID, course.Name, done, course.Total())
			}
			return w.Flush()
		},
	}
}

// completedIn counts completed keys that still belong to course.
func (c *cli) completedIn(cmd *cobra.Command, course *catalog.Course) (int, error) {
	keys, err := c.progress.CompletedKeys(cmd.Context(), string(course.ID))
	if err != nil {
		return 0, err
	}
	valid := make(map[string]struct{}, course.Total())
	for _, k := range course.FileKeys() {
		valid[k] = struct{}{}
	}
	n := 0
	for _, k := range keys {
		if _, ok := valid[k]; ok {
			n++
		}
	}
	return n, nil
}

func (c *cli) studyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "study <courseId> [fileKey...]",
		Short: "Replace your study queue for a course",
		Long:  `Replace your study queue for a course. With no file keys the queue is cleared.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, keys := args[0], args[1:]
			if verr := validation.ValidateVar("courseId", courseID, wireKeyTag); verr != nil {
				return verr
			}

			ch, connected, err := c.dial(cmd.Context(), courseID)
			defer func() { _ = ch.Close() }()
			if err != nil {
				return err
			}
			if !connected {
				return errors.New("server unreachable: study queues are not saved offline")
			}
			if err := ch.SyncStudyItems(keys); err != nil {
				return err
			}
			logging.Debug().Str("course_id", courseID).Int("count", len(keys)).Msg("Study queue sent")
			fmt.Fprintf(cmd.OutOrStdout(), "study queue for %s: %d item(s)\n", courseID, len(keys))
			return nil
		},
	}
}
