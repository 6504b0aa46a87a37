package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleOwner       = "owner"
	RoleModerator   = "moderator"
	RoleParticipant = "participant"
)

const (
	StatusActive = "active"
	StatusIdle   = "idle"
	StatusAway   = "away"
)

type RoomSettings struct {
	AllowChat       bool `json:"allow_chat"`
	PomodoroSync    bool `json:"pomodoro_sync"`
	RequireApproval bool `json:"require_approval"`
}

type StudyRoom struct {
	ID                  uuid.UUID    `json:"id"`
	Name                string       `json:"name"`
	Description         string       `json:"description"`
	CreatedBy           uuid.UUID    `json:"created_by"`
	IsPublic            bool         `json:"is_public"`
	MaxParticipants     int          `json:"max_participants"`
	CurrentParticipants int          `json:"current_participants"`
	CurrentDocumentID   *uuid.UUID   `json:"current_document_id"`
	Subject             *string      `json:"subject"`
	IsActive            bool         `json:"is_active"`
	Settings            RoomSettings `json:"settings"`
	CreatedAt           time.Time    `json:"created_at"`
	LastActivityAt      time.Time    `json:"last_activity_at"`
}

type RoomParticipant struct {
	ID         uuid.UUID `json:"id"`
	RoomID     uuid.UUID `json:"room_id"`
	UserID     uuid.UUID `json:"user_id"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	JoinedAt   time.Time `json:"joined_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type CreateRoomRequest struct {
	Name            string       `json:"name" validate:"required,min=1,max=100"`
	Description     string       `json:"description" validate:"max=500"`
	IsPublic        bool         `json:"is_public"`
	MaxParticipants int          `json:"max_participants" validate:"required,min=1,max=100"`
	Subject         *string      `json:"subject" validate:"omitempty,max=80"`
	DocumentID      *uuid.UUID   `json:"document_id"`
	Settings        RoomSettings `json:"settings"`
}

type SetRoomDocumentRequest struct {
	DocumentID *uuid.UUID `json:"document_id"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active idle away"`
}

// RoomDetails is a room joined with its roster and shared document.
type RoomDetails struct {
	StudyRoom
	Participants    []*ParticipantWithUser `json:"participants"`
	CurrentDocument *Document              `json:"current_document,omitempty"`
}

type ParticipantWithUser struct {
	RoomParticipant
	User *User `json:"user,omitempty"`
}

// UserRoom is a room annotated with the caller's membership.
type UserRoom struct {
	StudyRoom
	UserRole   string `json:"user_role"`
	UserStatus string `json:"user_status"`
}

// RoomEvent is published on room_updates:{room_id} after roster mutations so
// connected clients can refresh without polling.
type RoomEvent struct {
	Type   string    `json:"type"` // "joined" | "left" | "status" | "document" | "deactivated"
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
	At     time.Time `json:"at"`
}
