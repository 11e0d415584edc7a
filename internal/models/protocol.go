// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package models

// Client -> Server message types.
const (
	MessageTypeSetUsername        = "set_username"
	MessageTypeProgressUpdate     = "progress_update"
	MessageTypeRequestLeaderboard = "request_leaderboard"
	MessageTypeSyncStudyItems     = "sync_study_items"
)

// Server -> Client message types.
const (
	MessageTypeConnected         = "connected"
	MessageTypeLeaderboardUpdate = "leaderboard_update"
	MessageTypeProgressAck       = "progress_ack"
	MessageTypeUsernameUpdated   = "username_updated"
	MessageTypeStudyItemsSynced  = "study_items_synced"
)

// Envelope is decoded first from every inbound frame to route it by type.
type Envelope struct {
	Type string `json:"type"`
}

// SetUsernameMessage renames the sending identity.
type SetUsernameMessage struct {
	Type     string `json:"type"`
	Username string `json:"username" validate:"required,notblank,max=64"`
}

// ProgressUpdateMessage marks one course material complete or incomplete.
//
// IsComplete is a pointer so that a frame missing the field fails validation
// instead of silently meaning "incomplete". Total is optional; zero keeps the
// last total the aggregator saw for this user and course.
type ProgressUpdateMessage struct {
	Type       string `json:"type"`
	CourseID   string `json:"courseId" validate:"required,wirekey,max=128"`
	FileKey    string `json:"fileKey" validate:"required,wirekey,max=256"`
	IsComplete *bool  `json:"isComplete" validate:"required"`
	Username   string `json:"username,omitempty" validate:"max=64"`
	Total      int    `json:"total,omitempty" validate:"gte=0,lte=100000"`
}

// NewProgressUpdate builds a progress_update frame.
func NewProgressUpdate(courseID, fileKey string, isComplete bool, username string, total int) ProgressUpdateMessage {
	return ProgressUpdateMessage{
		Type:       MessageTypeProgressUpdate,
		CourseID:   courseID,
		FileKey:    fileKey,
		IsComplete: &isComplete,
		Username:   username,
		Total:      total,
	}
}

// Completed reports the IsComplete flag, treating a missing value as false.
func (m *ProgressUpdateMessage) Completed() bool {
	return m.IsComplete != nil && *m.IsComplete
}

// RequestLeaderboardMessage subscribes the connection to a course and asks for
// the current ranking.
type RequestLeaderboardMessage struct {
	Type     string `json:"type"`
	CourseID string `json:"courseId" validate:"required,wirekey,max=128"`
}

// SyncStudyItemsMessage replaces the set of fileKeys the user has queued for
// study in a course. An empty list clears the queue.
type SyncStudyItemsMessage struct {
	Type     string   `json:"type"`
	CourseID string   `json:"courseId" validate:"required,wirekey,max=128"`
	FileKeys []string `json:"fileKeys" validate:"max=10000,dive,wirekey,max=256"`
}

// ConnectedMessage acknowledges the websocket handshake.
type ConnectedMessage struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// LeaderboardUpdateMessage replaces the displayed ranking for CourseID.
type LeaderboardUpdateMessage struct {
	Type        string             `json:"type"`
	CourseID    string             `json:"courseId"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// ProgressAckMessage confirms a progress_update was applied.
type ProgressAckMessage struct {
	Type     string `json:"type"`
	CourseID string `json:"courseId"`
	FileKey  string `json:"fileKey"`
}

// UsernameUpdatedMessage confirms a rename.
type UsernameUpdatedMessage struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// StudyItemsSyncedMessage confirms a sync_study_items frame.
type StudyItemsSyncedMessage struct {
	Type     string `json:"type"`
	CourseID string `json:"courseId"`
	Count    int    `json:"count"`
}

// ServerMessage is the client-side view of any server frame. Fields not used by
// a given type are left zero.
type ServerMessage struct {
	Type        string             `json:"type"`
	UserID      string             `json:"userId,omitempty"`
	Message     string             `json:"message,omitempty"`
	CourseID    string             `json:"courseId,omitempty"`
	FileKey     string             `json:"fileKey,omitempty"`
	Username    string             `json:"username,omitempty"`
	Count       int                `json:"count,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard,omitempty"`
}
