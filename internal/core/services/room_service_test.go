package services

import (
	"context"
	"errors"
	"testing"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func join(t *testing.T, svc ports.RoomService, roomID, userID string, claimHost bool) *fakeClient {
	t.Helper()
	c := newFakeClient(domain.DeviceDesktop)
	err := svc.Join(context.Background(), c, domain.JoinRequest{
		RoomID:      domain.RoomID(roomID),
		UserID:      domain.UserID(userID),
		DisplayName: userID,
		ClaimHost:   claimHost,
	})
	require.NoError(t, err)
	return c
}

func TestJoinFirstClaimantBecomesHost(t *testing.T) {
	svc, registry := testRoomService(t)

	host := join(t, svc, "daily", "alice", true)
	late := join(t, svc, "daily", "bob", true)

	room, ok := registry.Get("daily")
	require.True(t, ok)
	assert.Equal(t, domain.UserID("alice"), room.Host())

	bob, ok := room.Participant("bob")
	require.True(t, ok)
	assert.False(t, bob.IsHost, "host claim after a host exists must be ignored")

	// Joiner gets a snapshot directly, not through the broadcast path.
	require.NotEmpty(t, late.events)
	snapshot := late.events[0]
	assert.Equal(t, domain.EventRoomUsers, snapshot.Type)
	assert.Equal(t, domain.UserID("alice"), snapshot.Data["hostId"])
	users, ok := snapshot.Data["users"].([]domain.Participant)
	require.True(t, ok)
	require.Len(t, users, 1)
	assert.Equal(t, domain.UserID("alice"), users[0].ID)

	// Existing members see user-joined; the joiner itself does not.
	assert.Contains(t, host.receivedTypes(t), domain.EventUserJoined)
	assert.NotContains(t, late.receivedTypes(t), domain.EventUserJoined)
}

func TestJoinReplacesPreviousConnection(t *testing.T) {
	svc, registry := testRoomService(t)

	first := join(t, svc, "daily", "alice", true)
	second := join(t, svc, "daily", "alice", false)

	assert.True(t, first.isClosed())
	require.NotEmpty(t, first.events)
	assert.Equal(t, domain.EventConnectionReplaced, first.events[len(first.events)-1].Type)

	room, ok := registry.Get("daily")
	require.True(t, ok)
	assert.Equal(t, 1, room.Size())
	// Host role persists across reconnects of the same id.
	assert.Equal(t, domain.UserID("alice"), room.Host())

	// The stale connection's delayed cleanup must not evict its successor.
	svc.Leave(first)
	assert.Equal(t, 1, room.Size())
	current, ok := room.Client("alice")
	require.True(t, ok)
	assert.Same(t, domain.Client(second), current)
}

func TestLeaveMigratesHostInJoinOrder(t *testing.T) {
	svc, registry := testRoomService(t)

	alice := join(t, svc, "daily", "alice", true)
	bob := join(t, svc, "daily", "bob", false)
	carol := join(t, svc, "daily", "carol", false)

	svc.Leave(alice)

	room, ok := registry.Get("daily")
	require.True(t, ok)
	assert.Equal(t, domain.UserID("bob"), room.Host())

	for _, c := range []*fakeClient{bob, carol} {
		events := c.received(t)
		var hostChanged *domain.Event
		for _, ev := range events {
			if ev.Type == domain.EventHostChanged {
				hostChanged = ev
			}
		}
		require.NotNil(t, hostChanged, "%s missed host-changed", c.userID)
		assert.Equal(t, "bob", hostChanged.Data["hostId"])
	}
}

func TestLeaveLastParticipantRemovesRoom(t *testing.T) {
	svc, registry := testRoomService(t)

	alice := join(t, svc, "daily", "alice", true)
	bob := join(t, svc, "daily", "bob", false)

	svc.Leave(bob)
	assert.Equal(t, 1, registry.Len())

	svc.Leave(alice)
	assert.Equal(t, 0, registry.Len())
}

func TestLeaveBeforeJoinIsNoOp(t *testing.T) {
	svc, registry := testRoomService(t)
	svc.Leave(newFakeClient(domain.DeviceDesktop))
	assert.Equal(t, 0, registry.Len())
}

func TestJoinValidatesIdentifiers(t *testing.T) {
	svc, _ := testRoomService(t)
	c := newFakeClient(domain.DeviceDesktop)

	err := svc.Join(context.Background(), c, domain.JoinRequest{
		RoomID:      "bad room id!",
		UserID:      "alice",
		DisplayName: "Alice",
	})
	assert.Error(t, err)
}

func TestToggleMediaForceMute(t *testing.T) {
	svc, registry := testRoomService(t)

	join(t, svc, "daily", "alice", true)
	bob := join(t, svc, "daily", "bob", false)

	room, _ := registry.Get("daily")
	aliceClient, _ := room.Client("alice")

	// A regular member cannot touch someone else's media.
	err := svc.ToggleMedia(bob, MediaAudio, false, "alice")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	// The host can mute, but never unmute nor disable video remotely.
	require.NoError(t, svc.ToggleMedia(aliceClient, MediaAudio, false, "bob"))
	assert.ErrorIs(t, svc.ToggleMedia(aliceClient, MediaAudio, true, "bob"), domain.ErrPermissionDenied)
	assert.ErrorIs(t, svc.ToggleMedia(aliceClient, MediaVideo, false, "bob"), domain.ErrPermissionDenied)

	member, _ := room.Participant("bob")
	assert.False(t, member.AudioEnabled)
	assert.True(t, member.VideoEnabled)
}

func TestToggleMediaSelf(t *testing.T) {
	svc, registry := testRoomService(t)

	join(t, svc, "daily", "alice", true)
	bob := join(t, svc, "daily", "bob", false)

	require.NoError(t, svc.ToggleMedia(bob, MediaVideo, false, ""))

	room, _ := registry.Get("daily")
	member, _ := room.Participant("bob")
	assert.False(t, member.VideoEnabled)

	assert.Error(t, svc.ToggleMedia(bob, "screen", true, ""))
}

func TestChatExcludesSender(t *testing.T) {
	svc, _ := testRoomService(t)

	alice := join(t, svc, "daily", "alice", true)
	bob := join(t, svc, "daily", "bob", false)

	require.NoError(t, svc.Chat(bob, "hello"))

	var msg *domain.Event
	for _, ev := range alice.received(t) {
		if ev.Type == domain.EventChatMessage {
			msg = ev
		}
	}
	require.NotNil(t, msg)
	assert.Equal(t, "hello", msg.Data["text"])
	assert.Equal(t, "bob", msg.Data["userId"])
	assert.NotEmpty(t, msg.Data["messageId"])
	assert.NotNil(t, msg.Data["timestamp"])

	assert.NotContains(t, bob.receivedTypes(t), domain.EventChatMessage)

	assert.Error(t, svc.Chat(bob, "   "))
}

func TestRecordingRequiresHostOrAdmin(t *testing.T) {
	svc, _ := testRoomService(t)

	join(t, svc, "daily", "alice", true)
	bob := join(t, svc, "daily", "bob", false)

	assert.ErrorIs(t, svc.SetRecording(bob, true), domain.ErrPermissionDenied)

	admin := newFakeClient(domain.DeviceDesktop)
	require.NoError(t, svc.Join(context.Background(), admin, domain.JoinRequest{
		RoomID: "daily", UserID: "ops", DisplayName: "Ops", IsAdmin: true,
	}))
	assert.NoError(t, svc.SetRecording(admin, true))
}

func TestUpdateHostSettings(t *testing.T) {
	svc, registry := testRoomService(t)

	alice := join(t, svc, "daily", "alice", true)
	bob := join(t, svc, "daily", "bob", false)

	off := false
	assert.ErrorIs(t, svc.UpdateHostSettings(bob, &off, nil), domain.ErrPermissionDenied)

	require.NoError(t, svc.UpdateHostSettings(alice, &off, nil))

	room, _ := registry.Get("daily")
	settings := room.Settings()
	assert.False(t, settings.HostVideoPriority)
	assert.True(t, settings.AllowParticipantDetach, "untouched knob keeps its value")

	assert.Contains(t, bob.receivedTypes(t), domain.EventHostSettingsUpdated)
}

func TestPollLifecycle(t *testing.T) {
	svc, _ := testRoomService(t)

	alice := join(t, svc, "daily", "alice", true)
	bob := join(t, svc, "daily", "bob", false)

	assert.ErrorIs(t,
		svc.CreatePoll(bob, "", "coffee?", []string{"yes", "no"}),
		domain.ErrPermissionDenied)
	assert.Error(t, svc.CreatePoll(alice, "", "coffee?", []string{"yes"}))

	require.NoError(t, svc.CreatePoll(alice, "", "coffee?", []string{"yes", "no"}))

	// Everyone, the creator included, learns the assigned poll id.
	var created *domain.Event
	for _, ev := range alice.received(t) {
		if ev.Type == domain.EventPollCreated {
			created = ev
		}
	}
	require.NotNil(t, created)
	pollID, _ := created.Data["pollId"].(string)
	require.NotEmpty(t, pollID)
	assert.Contains(t, bob.receivedTypes(t), domain.EventPollCreated)

	require.NoError(t, svc.VotePoll(bob, pollID, 1))
	assert.Error(t, svc.VotePoll(bob, pollID, -1))

	assert.ErrorIs(t, svc.EndPoll(bob, pollID), domain.ErrPermissionDenied)
	require.NoError(t, svc.EndPoll(alice, pollID))
	assert.Contains(t, bob.receivedTypes(t), domain.EventPollEnded)
}

func TestHandAndSpeakingState(t *testing.T) {
	svc, registry := testRoomService(t)

	alice := join(t, svc, "daily", "alice", true)
	bob := join(t, svc, "daily", "bob", false)

	require.NoError(t, svc.SetHandRaised(bob, true))
	require.NoError(t, svc.SetSpeaking(bob, true))

	room, _ := registry.Get("daily")
	member, _ := room.Participant("bob")
	assert.True(t, member.HandRaised)
	assert.True(t, member.Speaking)

	types := alice.receivedTypes(t)
	assert.Contains(t, types, domain.EventHandStateChanged)
	assert.Contains(t, types, domain.EventSpeakingStateChanged)
}

func TestTerminateRoomClosesEveryConnection(t *testing.T) {
	svc, registry := testRoomService(t)

	alice := join(t, svc, "daily", "alice", true)
	bob := join(t, svc, "daily", "bob", false)

	svc.TerminateRoom(context.Background(), "daily")

	assert.Equal(t, 0, registry.Len())
	for _, c := range []*fakeClient{alice, bob} {
		assert.True(t, c.isClosed())
		assert.Contains(t, c.receivedTypes(t), domain.EventConferenceTerminated)
	}
}

func TestShutdownNotifiesAllRooms(t *testing.T) {
	svc, registry := testRoomService(t)

	alice := join(t, svc, "daily", "alice", true)
	zed := join(t, svc, "standup", "zed", true)

	svc.Shutdown()

	assert.Equal(t, 0, registry.Len())
	for _, c := range []*fakeClient{alice, zed} {
		assert.True(t, c.isClosed())
		assert.Contains(t, c.receivedTypes(t), domain.EventServerShutdown)
	}
}

// stubConferenceRepo serves canned conference records.
type stubConferenceRepo struct {
	conferences map[domain.RoomID]*domain.Conference
	err         error
}

func (r *stubConferenceRepo) Create(ctx context.Context, conf *domain.Conference) error {
	return r.err
}

func (r *stubConferenceRepo) GetByID(ctx context.Context, id domain.RoomID) (*domain.Conference, error) {
	if r.err != nil {
		return nil, r.err
	}
	conf, ok := r.conferences[id]
	if !ok {
		return nil, domain.ErrConferenceNotFound
	}
	copied := *conf
	return &copied, nil
}

func (r *stubConferenceRepo) Update(ctx context.Context, conf *domain.Conference) error {
	if r.err != nil {
		return r.err
	}
	r.conferences[conf.ID] = conf
	return nil
}

func (r *stubConferenceRepo) Delete(ctx context.Context, id domain.RoomID) error {
	delete(r.conferences, id)
	return r.err
}

func (r *stubConferenceRepo) ListActive(ctx context.Context) ([]*domain.Conference, error) {
	return nil, r.err
}

func gatedRoomService(t *testing.T, repo ports.ConferenceRepository) (ports.RoomService, *Registry) {
	registry := NewRegistry(nil)
	svc := NewRoomService(registry, testBroadcaster(t), repo, nil, nil, testLogger(t))
	return svc, registry
}

func TestJoinRejectedWhenConferenceLocked(t *testing.T) {
	repo := &stubConferenceRepo{conferences: map[domain.RoomID]*domain.Conference{
		"daily": {ID: "daily", Locked: true},
	}}
	svc, _ := gatedRoomService(t, repo)

	err := svc.Join(context.Background(), newFakeClient(domain.DeviceDesktop), domain.JoinRequest{
		RoomID: "daily", UserID: "alice", DisplayName: "Alice",
	})
	assert.ErrorIs(t, err, domain.ErrRoomLocked)
}

func TestJoinRejectedWhenConferenceFull(t *testing.T) {
	repo := &stubConferenceRepo{conferences: map[domain.RoomID]*domain.Conference{
		"daily": {ID: "daily", MaxParticipants: 1},
	}}
	svc, _ := gatedRoomService(t, repo)

	join(t, svc, "daily", "alice", true)

	err := svc.Join(context.Background(), newFakeClient(domain.DeviceDesktop), domain.JoinRequest{
		RoomID: "daily", UserID: "bob", DisplayName: "Bob",
	})
	assert.ErrorIs(t, err, domain.ErrRoomFull)
}

func TestJoinAdmittedWhenStoreDown(t *testing.T) {
	repo := &stubConferenceRepo{err: errors.New("store offline")}
	svc, registry := gatedRoomService(t, repo)

	join(t, svc, "daily", "alice", true)
	assert.Equal(t, 1, registry.Len())
}

func TestSetRoomLockBroadcasts(t *testing.T) {
	svc, _ := testRoomService(t)

	alice := join(t, svc, "daily", "alice", true)

	svc.SetRoomLock("daily", true)
	svc.SetRoomLock("daily", false)
	svc.SetRoomLock("missing", true) // no-op

	types := alice.receivedTypes(t)
	assert.Contains(t, types, domain.EventRoomLocked)
	assert.Contains(t, types, domain.EventRoomUnlocked)
}

func TestJoinRacingLastLeaveKeepsRoomRegistered(t *testing.T) {
	svc, registry := testRoomService(t)

	// A joiner and the room's last leaver race per iteration. Whatever the
	// interleaving, a client that completed Join must be a member of the
	// room the registry holds under that id.
	for i := 0; i < 300; i++ {
		bob := join(t, svc, "daily", "bob", true)

		done := make(chan struct{})
		go func() {
			svc.Leave(bob)
			close(done)
		}()

		alice := newFakeClient(domain.DeviceDesktop)
		require.NoError(t, svc.Join(context.Background(), alice, domain.JoinRequest{
			RoomID:      "daily",
			UserID:      "alice",
			DisplayName: "alice",
		}))
		<-done

		room, ok := registry.Get("daily")
		require.True(t, ok, "joined room vanished from the registry")
		_, ok = room.Participant("alice")
		require.True(t, ok, "joiner missing from the registered room")

		svc.Leave(alice)
		require.Equal(t, 0, registry.Len())
	}
}
