package ports

import (
	"context"

	"huddle/internal/core/domain"
)

// RoomService coordinates joins, leaves, room state changes and host
// permissions. The websocket layer and the HTTP handlers both drive it.
type RoomService interface {
	Join(ctx context.Context, client domain.Client, req domain.JoinRequest) error
	Leave(client domain.Client)

	ToggleMedia(client domain.Client, mediaType string, enabled bool, target domain.UserID) error
	Chat(client domain.Client, text string) error
	SetHandRaised(client domain.Client, raised bool) error
	SetSpeaking(client domain.Client, speaking bool) error
	SetRecording(client domain.Client, recording bool) error
	UpdateHostSettings(client domain.Client, hostVideoPriority, allowParticipantDetach *bool) error
	ShareFile(client domain.Client, file map[string]interface{}) error

	CreatePoll(client domain.Client, pollID, question string, options []string) error
	VotePoll(client domain.Client, pollID string, optionIndex int) error
	EndPoll(client domain.Client, pollID string) error

	// SetRoomLock and TerminateRoom propagate conference-record changes made
	// over the HTTP API into the live room.
	SetRoomLock(roomID domain.RoomID, locked bool)
	TerminateRoom(ctx context.Context, roomID domain.RoomID)

	// Shutdown best-effort notifies every open connection before the listener
	// closes.
	Shutdown()
}

// AuthService validates and issues the session tokens that carry a caller's
// identity and role flags.
type AuthService interface {
	GenerateToken(userID domain.UserID, displayName string, isAdmin bool) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is the identity the session layer hands to the signaling core. The
// core enforces the admin flag but never defines who gets it.
type Claims struct {
	UserID      domain.UserID `json:"user_id"`
	DisplayName string        `json:"display_name"`
	IsAdmin     bool          `json:"is_admin"`
}
