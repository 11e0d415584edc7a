// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

/*
Package services adapts StudySync components to the suture.Service interface.

	type Service interface {
	    Serve(ctx context.Context) error
	}

  - WebSocketHubService wraps websocket.Hub.RunWithContext.
  - HTTPServerService turns ListenAndServe/Shutdown into a context-driven Serve.
  - SyncChannelService runs a syncchannel.Channel until the context ends, then
    closes it.

Each wrapper implements fmt.Stringer so suture events name the service.
*/
package services
