package backup

import (
	"context"
	"testing"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	"huddle/internal/infrastructure/repositories/memory"
	"huddle/pkg/backup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testSnapshots(t *testing.T) *backup.Service {
	t.Helper()
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return backup.NewService(storage, "test")
}

func seedConference(t *testing.T, repo ports.ConferenceRepository, id string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, repo.Create(context.Background(), &domain.Conference{
		ID:              domain.RoomID(id),
		Name:            "retro",
		MaxParticipants: 12,
		Active:          true,
		StartedAt:       &now,
		CreatedAt:       now,
	}))
}

func TestSnapshotAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	snapshots := testSnapshots(t)
	logger := zaptest.NewLogger(t).Sugar()

	source := memory.NewMemoryConferenceRepository()
	seedConference(t, source, "conf-1")
	seedConference(t, source, "conf-2")

	sched := NewScheduler(snapshots, source, Config{Interval: time.Hour}, logger)
	sched.run(ctx)

	target := memory.NewMemoryConferenceRepository()
	restored, err := NewRestorer(snapshots, target, logger).RestoreLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	conf, err := target.GetByID(ctx, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, "retro", conf.Name)
	assert.True(t, conf.Active)
}

func TestRestoreKeepsExistingRecords(t *testing.T) {
	ctx := context.Background()
	snapshots := testSnapshots(t)
	logger := zaptest.NewLogger(t).Sugar()

	source := memory.NewMemoryConferenceRepository()
	seedConference(t, source, "conf-1")
	NewScheduler(snapshots, source, Config{Interval: time.Hour}, logger).run(ctx)

	target := memory.NewMemoryConferenceRepository()
	require.NoError(t, target.Create(ctx, &domain.Conference{
		ID:              "conf-1",
		Name:            "live copy",
		MaxParticipants: 4,
		CreatedAt:       time.Now(),
	}))

	restored, err := NewRestorer(snapshots, target, logger).RestoreLatest(ctx)
	require.NoError(t, err)
	assert.Zero(t, restored)

	conf, err := target.GetByID(ctx, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, "live copy", conf.Name)
}

func TestRestoreWithoutSnapshotsIsNoOp(t *testing.T) {
	restored, err := NewRestorer(testSnapshots(t), memory.NewMemoryConferenceRepository(), zaptest.NewLogger(t).Sugar()).RestoreLatest(context.Background())
	require.NoError(t, err)
	assert.Zero(t, restored)
}
