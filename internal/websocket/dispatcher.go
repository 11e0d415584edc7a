// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package websocket

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/studysync/internal/leaderboard"
	"github.com/tomtom215/studysync/internal/metrics"
	"github.com/tomtom215/studysync/internal/models"
	"github.com/tomtom215/studysync/internal/validation"
)

// ConnectedMessageText is sent in the handshake acknowledgement.
const ConnectedMessageText = "Connected to progress tracking server"

// Dispatcher routes client frames to the aggregator and replies through the
// hub. Bad frames are logged, counted and dropped; the connection stays open.
type Dispatcher struct {
	hub *Hub
	agg *leaderboard.Aggregator
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(hub *Hub, agg *leaderboard.Aggregator) *Dispatcher {
	return &Dispatcher{hub: hub, agg: agg}
}

// Welcome registers c with the aggregator and sends the connected frame.
func (d *Dispatcher) Welcome(c *Client) {
	d.agg.RegisterUser(c.UserID())
	d.hub.Send(c, models.MessageTypeConnected, models.ConnectedMessage{
		Type:    models.MessageTypeConnected,
		UserID:  c.UserID(),
		Message: ConnectedMessageText,
	})
}

// HandleFrame implements Handler.
func (d *Dispatcher) HandleFrame(c *Client, data []byte) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		d.drop(c, "", metrics.ResultMalformed, err)
		return
	}

	switch env.Type {
	case models.MessageTypeProgressUpdate:
		d.handleProgress(c, data)
	case models.MessageTypeSetUsername:
		d.handleSetUsername(c, data)
	case models.MessageTypeRequestLeaderboard:
		d.handleRequestLeaderboard(c, data)
	case models.MessageTypeSyncStudyItems:
		d.handleSyncStudyItems(c, data)
	default:
		d.drop(c, env.Type, metrics.ResultUnknown, nil)
	}
}

// decode unmarshals and validates one frame, recording the failure if any.
func (d *Dispatcher) decode(c *Client, msgType string, data []byte, v interface{}) bool {
	if err := json.Unmarshal(data, v); err != nil {
		d.drop(c, msgType, metrics.ResultMalformed, err)
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		d.drop(c, msgType, metrics.ResultInvalid, verr)
		return false
	}
	return true
}

func (d *Dispatcher) drop(c *Client, msgType, result string, err error) {
	metrics.RecordInbound(msgType, result)
	c.log.Debug().Err(err).Str("message_type", msgType).Str("result", result).Msg("dropping websocket frame")
}

func (d *Dispatcher) handleProgress(c *Client, data []byte) {
	var msg models.ProgressUpdateMessage
	if !d.decode(c, models.MessageTypeProgressUpdate, data, &msg) {
		return
	}

	_, err := d.agg.ApplyProgress(leaderboard.Update{
		UserID:     c.UserID(),
		CourseID:   msg.CourseID,
		FileKey:    msg.FileKey,
		IsComplete: msg.Completed(),
		Username:   msg.Username,
		Total:      msg.Total,
	})
	if err != nil {
		d.drop(c, models.MessageTypeProgressUpdate, metrics.ResultRejected, err)
		return
	}
	metrics.RecordInbound(models.MessageTypeProgressUpdate, metrics.ResultOK)

	d.hub.Send(c, models.MessageTypeProgressAck, models.ProgressAckMessage{
		Type:     models.MessageTypeProgressAck,
		CourseID: msg.CourseID,
		FileKey:  msg.FileKey,
	})
}

func (d *Dispatcher) handleSetUsername(c *Client, data []byte) {
	var msg models.SetUsernameMessage
	if !d.decode(c, models.MessageTypeSetUsername, data, &msg) {
		return
	}

	name := strings.TrimSpace(msg.Username)
	touched := d.agg.SetUsername(c.UserID(), name)
	metrics.RecordInbound(models.MessageTypeSetUsername, metrics.ResultOK)
	c.log.Debug().Str("username", name).Int("courses", touched).Msg("username updated")

	d.hub.Send(c, models.MessageTypeUsernameUpdated, models.UsernameUpdatedMessage{
		Type:     models.MessageTypeUsernameUpdated,
		Username: name,
	})
}

func (d *Dispatcher) handleRequestLeaderboard(c *Client, data []byte) {
	var msg models.RequestLeaderboardMessage
	if !d.decode(c, models.MessageTypeRequestLeaderboard, data, &msg) {
		return
	}

	// Queue the reply under the course lock so it cannot overtake a broadcast
	// of a later mutation.
	d.agg.WithSnapshot(msg.CourseID, func(snap models.LeaderboardSnapshot) {
		d.hub.SendSnapshot(c, snap)
	})
	metrics.RecordInbound(models.MessageTypeRequestLeaderboard, metrics.ResultOK)
}

func (d *Dispatcher) handleSyncStudyItems(c *Client, data []byte) {
	var msg models.SyncStudyItemsMessage
	if !d.decode(c, models.MessageTypeSyncStudyItems, data, &msg) {
		return
	}

	count := d.agg.SyncStudyItems(c.UserID(), msg.CourseID, msg.FileKeys)
	metrics.RecordInbound(models.MessageTypeSyncStudyItems, metrics.ResultOK)

	d.hub.Send(c, models.MessageTypeStudyItemsSynced, models.StudyItemsSyncedMessage{
		Type:     models.MessageTypeStudyItemsSynced,
		CourseID: msg.CourseID,
		Count:    count,
	})
}
