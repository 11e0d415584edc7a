// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

/*
Package supervisor runs StudySync's long-lived components under suture v4.

# Tree

	studysync
	├── messaging-layer
	│   ├── WebSocketHubService   (server)
	│   └── SyncChannelService    (syncctl watch)
	└── api-layer
	    └── HTTPServerService     (server)

Each layer counts failures on its own, so a listener that keeps crashing
backs off without restarting the hub and the rankings it serves.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(),
	    supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Supervisor.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("supervisor stopped")
	}

# Failure Handling

Failures decay over FailureDecay seconds. Once the count passes
FailureThreshold the supervisor waits FailureBackoff before the next restart.
A service that returns nil is considered done and is not restarted; return
suture.ErrDoNotRestart to stop a service permanently with an error.

# Shutdown

Canceling the context passed to Serve stops every service. Services that miss
ShutdownTimeout are listed by UnstoppedServiceReport.
*/
package supervisor
