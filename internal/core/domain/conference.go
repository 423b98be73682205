package domain

import "time"

// Conference is the persisted record of a scheduled or running conference.
// The signaling core references it by id only; the in-memory Room remains
// authoritative for live state.
type Conference struct {
	ID              RoomID        `json:"id"`
	Name            string        `json:"name"`
	MaxParticipants int           `json:"maxParticipants"`
	Locked          bool          `json:"locked"`
	Active          bool          `json:"active"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	Duration        time.Duration `json:"duration,omitempty"`
}
