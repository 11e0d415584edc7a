// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

/*
Package websocket carries the leaderboard protocol between many Sync Channels
and the aggregator, using gorilla/websocket with a hub-client architecture.

	         ┌──────────────┐  ApplyProgress / WithSnapshot
	frames → │  Dispatcher  │ ───────────────────────────▶ leaderboard.Aggregator
	         └──────┬───────┘                                   │
	                │ Send / SendSnapshot          PublishSnapshot
	                ▼                                           ▼
	         ┌──────────────────────────────────────────────────────┐
	         │ Hub: clients, course → subscribers, one run goroutine │
	         └──────┬───────────────┬───────────────┬───────────────┘
	             Client 1        Client 2        Client 3

Each client has two goroutines:
  - readPump: reads frames, enforces the read limit and pong deadline, passes
    text frames to the Handler
  - writePump: writes queued frames and pings every 9/10 of the pong wait

Subscriptions are per connection and cumulative: a connection is subscribed to a
course when it sends request_leaderboard for it, and all of its subscriptions go
away when it disconnects. A client whose send buffer fills is dropped.

All outbound frames, including acknowledgements, pass through the hub goroutine,
which is the only place a client's send channel is closed.
*/
package websocket
