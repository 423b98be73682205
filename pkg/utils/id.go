package utils

import (
	"github.com/google/uuid"
)

// GenerateConferenceID generates a unique conference ID
func GenerateConferenceID() string {
	return uuid.NewString()
}

// GenerateMessageID generates a unique chat message ID
func GenerateMessageID() string {
	return uuid.NewString()
}

// GeneratePollID generates a unique poll ID
func GeneratePollID() string {
	return uuid.NewString()
}
