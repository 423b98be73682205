package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour)

	token, err := svc.GenerateToken("alice", "Alice", true)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(claims.UserID))
	assert.Equal(t, "Alice", claims.DisplayName)
	assert.True(t, claims.IsAdmin)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAuthService("secret-a", time.Hour).GenerateToken("alice", "Alice", false)
	require.NoError(t, err)

	_, err = NewAuthService("secret-b", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService("test-secret", -time.Minute)

	token, err := svc.GenerateToken("alice", "Alice", false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour)
	_, err := svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
