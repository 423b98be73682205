package domain

type RoomID string
type UserID string

// Participant is a joined user's visible state within a Room, distinct from
// the transport Connection that carries it.
type Participant struct {
	ID              UserID `json:"userId"`
	DisplayName     string `json:"displayName"`
	IsAdmin         bool   `json:"isAdmin"`
	IsHost          bool   `json:"isHost"`
	VideoEnabled    bool   `json:"videoEnabled"`
	AudioEnabled    bool   `json:"audioEnabled"`
	HandRaised      bool   `json:"handRaised"`
	RecordingActive bool   `json:"recordingActive"`
	Speaking        bool   `json:"speaking"`
}

// JoinRequest carries the validated fields of a join-room message.
type JoinRequest struct {
	RoomID      RoomID
	UserID      UserID
	DisplayName string
	ClaimHost   bool
	IsAdmin     bool

	// Host settings applied only when the joiner becomes the room's first host.
	HostVideoPriority      *bool
	AllowParticipantDetach *bool
}
