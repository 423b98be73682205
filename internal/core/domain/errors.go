package domain

import "errors"

var (
	ErrConferenceNotFound  = errors.New("conference not found")
	ErrConferenceExists    = errors.New("conference already exists")
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotJoined           = errors.New("not joined to a room")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrRoomLocked          = errors.New("room is locked")
	ErrRoomFull            = errors.New("room is full")
)
