// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

/*
Package models defines the wire protocol spoken between the Sync Channel client
and the leaderboard aggregator, plus the REST response envelope.

Every frame is a JSON object with a "type" discriminator and flat fields:

	{"type":"progress_update","courseId":"C1","fileKey":"1-4412","isComplete":true,"username":"QuietOtter417","total":10}
	{"type":"leaderboard_update","courseId":"C1","leaderboard":[{"userId":"...","percentage":30,...}]}

Client -> Server:

  - set_username: username
  - progress_update: courseId, fileKey, isComplete, username, total (optional)
  - request_leaderboard: courseId
  - sync_study_items: courseId, fileKeys

Server -> Client:

  - connected: userId, message
  - leaderboard_update: courseId, leaderboard
  - progress_ack: courseId, fileKey
  - username_updated: username
  - study_items_synced: courseId, count

Inbound frame structs carry go-playground/validator tags; see internal/validation.
*/
package models
