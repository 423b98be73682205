package backup

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T) *Service {
	t.Helper()
	storage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewService(storage, "1.0.0")
}

func record(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestWriteReadRoundTrip(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	name, err := svc.Write(ctx, &Snapshot{
		Records:  []json.RawMessage{record(t, map[string]string{"id": "conf-1"})},
		Metadata: map[string]interface{}{"record_count": 1},
	})
	require.NoError(t, err)
	assert.Contains(t, name, "snapshot-")

	snap, err := svc.Read(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", snap.Version)
	require.Len(t, snap.Records, 1)

	var got map[string]string
	require.NoError(t, json.Unmarshal(snap.Records[0], &got))
	assert.Equal(t, "conf-1", got["id"])
}

func TestLatestReturnsNewestSnapshot(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	_, snap, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap, "empty storage should yield no snapshot")

	first, err := svc.Write(ctx, &Snapshot{})
	require.NoError(t, err)

	// Names carry second resolution, so force a distinct timestamp.
	time.Sleep(1100 * time.Millisecond)

	second, err := svc.Write(ctx, &Snapshot{})
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	name, snap, err := svc.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, second, name)
}

func TestReadRejectsCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewFileStorage(dir)
	require.NoError(t, err)
	svc := NewService(storage, "1.0.0")
	ctx := context.Background()

	require.NoError(t, storage.Save(ctx, "snapshot-20260101-000000.json", strings.NewReader("{not json")))

	_, err = svc.Read(ctx, "snapshot-20260101-000000.json")
	assert.Error(t, err)
}

func TestPruneDeletesOldSnapshots(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	name, err := svc.Write(ctx, &Snapshot{})
	require.NoError(t, err)

	removed, err := svc.Prune(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = svc.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	names, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, name)
}
