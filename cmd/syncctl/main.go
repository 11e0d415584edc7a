// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

// Command syncctl is the StudySync client: it keeps the local identity and
// progress store, and talks to the leaderboard server over a Sync Channel.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/studysync/internal/catalog"
	"github.com/tomtom215/studysync/internal/config"
	"github.com/tomtom215/studysync/internal/identity"
	"github.com/tomtom215/studysync/internal/kvstore"
	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/progress"
)

// cli holds flag values and the stores opened for one command invocation.
type cli struct {
	serverURL  string
	dataDir    string
	catalogDir string
	timeout    time.Duration
	verbose    bool

	cfg      config.ClientConfig
	kv       kvstore.Store
	identity *identity.Store
	progress *progress.Store
	catalog  *catalog.Catalog
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "syncctl",
		Short: "StudySync client: local progress and live course leaderboards",
		Long: `syncctl tracks which course materials you have finished and shares that
progress with a StudySync leaderboard server.

Examples:
  syncctl whoami                      # show your user id and display name
  syncctl rename "Night Owl"          # change your display name
  syncctl toggle 12345 1-4412 --done  # mark one file complete
  syncctl watch 12345                 # follow the live leaderboard
  syncctl courses                     # list downloaded courses`,
		SilenceUsage:      true,
		PersistentPreRunE: c.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.serverURL, "server", "", "leaderboard server URL (overrides client.server_url)")
	flags.StringVar(&c.dataDir, "data-dir", "", "directory of the local progress database (overrides client.data_dir)")
	flags.StringVar(&c.catalogDir, "catalog-dir", "", "directory scanned for course summaries (overrides client.catalog_dir)")
	flags.DurationVar(&c.timeout, "timeout", 5*time.Second, "how long one-shot commands wait for the server")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.whoamiCmd(),
		c.renameCmd(),
		c.toggleCmd(),
		c.watchCmd(),
		c.coursesCmd(),
		c.studyCmd(),
	)
	return root
}

// open loads configuration and opens the local stores.
func (c *cli) open(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level := cfg.Logging.Level
	if c.verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console", Output: cmd.ErrOrStderr()})

	c.cfg = cfg.Client
	if c.serverURL != "" {
		c.cfg.ServerURL = c.serverURL
	}
	if c.dataDir != "" {
		c.cfg.DataDir = c.dataDir
	}
	if c.catalogDir != "" {
		c.cfg.CatalogDir = c.catalogDir
	}

	if err := os.MkdirAll(c.cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	store, err := kvstore.OpenBadger(c.cfg.DataDir)
	if err != nil {
		return err
	}
	c.kv = store
	c.identity = identity.NewStore(store)
	c.progress = progress.NewStore(store)

	c.catalog = catalog.New()
	if c.cfg.CatalogDir != "" {
		n, err := c.catalog.Load(c.cfg.CatalogDir)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logging.Debug().Str("dir", c.cfg.CatalogDir).Msg("Catalog directory not found")
		case err != nil:
			logging.Warn().Err(err).Msg("Failed to scan course catalog")
		default:
			logging.Debug().Int("courses", n).Str("dir", c.cfg.CatalogDir).Msg("Course catalog loaded")
		}
	}
	return nil
}

func (c *cli) close() error {
	if c.kv == nil {
		return nil
	}
	err := c.kv.Close()
	c.kv = nil
	return err
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		// PersistentPostRunE does not run when the command fails.
		_ = root.PersistentPostRunE(root, nil)
		os.Exit(1)
	}
}
