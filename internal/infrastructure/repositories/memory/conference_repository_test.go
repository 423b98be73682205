package memory

import (
	"context"
	"testing"

	"huddle/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConferenceCRUD(t *testing.T) {
	repo := NewMemoryConferenceRepository()
	ctx := context.Background()

	conf := &domain.Conference{ID: "daily", Name: "Daily Standup", MaxParticipants: 10}
	require.NoError(t, repo.Create(ctx, conf))
	assert.ErrorIs(t, repo.Create(ctx, conf), domain.ErrConferenceExists)

	got, err := repo.GetByID(ctx, "daily")
	require.NoError(t, err)
	assert.Equal(t, "Daily Standup", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	got.Locked = true
	require.NoError(t, repo.Update(ctx, got))

	// Stored copies are isolated from caller mutation.
	got.Name = "mutated"
	again, err := repo.GetByID(ctx, "daily")
	require.NoError(t, err)
	assert.True(t, again.Locked)
	assert.Equal(t, "Daily Standup", again.Name)

	require.NoError(t, repo.Delete(ctx, "daily"))
	_, err = repo.GetByID(ctx, "daily")
	assert.ErrorIs(t, err, domain.ErrConferenceNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "daily"), domain.ErrConferenceNotFound)
	assert.ErrorIs(t, repo.Update(ctx, conf), domain.ErrConferenceNotFound)
}

func TestConferenceListActive(t *testing.T) {
	repo := NewMemoryConferenceRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Conference{ID: "a", Active: true}))
	require.NoError(t, repo.Create(ctx, &domain.Conference{ID: "b", Active: false}))
	require.NoError(t, repo.Create(ctx, &domain.Conference{ID: "c", Active: true}))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}
