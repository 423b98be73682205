package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	"huddle/pkg/circuitbreaker"
	"huddle/pkg/utils"
	"huddle/pkg/validation"

	"go.uber.org/zap"
)

const (
	MediaAudio = "audio"
	MediaVideo = "video"
)

type roomService struct {
	registry    *Registry
	broadcaster *Broadcaster
	conferences ports.ConferenceRepository // may be nil
	sync        *ConferenceSync
	storeGate   *circuitbreaker.CircuitBreaker
	metrics     ports.MetricsRecorder
	logger      *zap.SugaredLogger
}

// NewRoomService wires the join/leave protocol, room state changes and the
// host permission gate. conferences may be nil for store-less deployments.
func NewRoomService(
	registry *Registry,
	broadcaster *Broadcaster,
	conferences ports.ConferenceRepository,
	sync *ConferenceSync,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.RoomService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &roomService{
		registry:    registry,
		broadcaster: broadcaster,
		conferences: conferences,
		sync:        sync,
		storeGate:   circuitbreaker.New(circuitbreaker.DefaultConfig()),
		metrics:     metrics,
		logger:      logger,
	}
}

func (s *roomService) Join(ctx context.Context, client domain.Client, req domain.JoinRequest) error {
	if err := validation.ValidateRoomID(string(req.RoomID)); err != nil {
		return err
	}
	if err := validation.ValidateUserID(string(req.UserID)); err != nil {
		return err
	}
	if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
		return err
	}

	if err := s.checkConferenceGate(ctx, req.RoomID); err != nil {
		return err
	}

	var (
		room      *domain.Room
		member    domain.Participant
		replaced  domain.Client
		firstJoin bool
	)
	for {
		room = s.registry.GetOrCreate(req.RoomID)
		firstJoin = room.Empty()
		member, replaced = room.Add(client, req)

		// Re-check that the room we joined is still the registered one. A
		// concurrent last-leaver may have removed it between resolution and
		// Add, which would leave this client bound to an orphan.
		if current, ok := s.registry.Get(req.RoomID); ok && current == room {
			break
		}
		room.Remove(req.UserID, client)
		if replaced != nil {
			replaced.Unbind()
			replaced.Close("replaced by a newer connection")
		}
	}
	client.Bind(room.ID, req.UserID)

	if replaced != nil {
		// Last writer wins per participant id.
		if err := replaced.Send(domain.NewEvent(domain.EventConnectionReplaced, map[string]interface{}{
			"reason": "another connection joined with the same user id",
		})); err != nil {
			s.logger.Debugw("failed to notify replaced connection", "user_id", req.UserID, "error", err)
		}
		replaced.Unbind()
		replaced.Close("replaced by a newer connection")
	}

	if firstJoin && s.sync != nil {
		go s.sync.MarkStarted(room.ID)
	}

	settings := room.Settings()
	if err := client.Send(domain.NewEvent(domain.EventRoomUsers, map[string]interface{}{
		"users":    room.Others(req.UserID),
		"hostId":   room.Host(),
		"settings": settings,
	})); err != nil {
		s.logger.Debugw("failed to send room snapshot", "user_id", req.UserID, "error", err)
	}

	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventUserJoined, map[string]interface{}{
		"user": member,
	}), req.UserID)

	s.metrics.ParticipantJoined(client.DeviceClass())
	s.logger.Infow("participant joined",
		"room_id", req.RoomID,
		"user_id", req.UserID,
		"device_class", client.DeviceClass(),
		"host", member.IsHost,
		"replaced", replaced != nil,
	)
	return nil
}

// checkConferenceGate enforces lock state and the participant cap recorded in
// the persisted conference, when one exists. A store outage never keeps
// anyone out: the in-memory room is authoritative for liveness, the record
// only advisory.
func (s *roomService) checkConferenceGate(ctx context.Context, roomID domain.RoomID) error {
	if s.conferences == nil {
		return nil
	}

	var conf *domain.Conference
	err := s.storeGate.Execute(func() error {
		c, err := s.conferences.GetByID(ctx, roomID)
		if err != nil {
			if errors.Is(err, domain.ErrConferenceNotFound) {
				return nil
			}
			return err
		}
		conf = c
		return nil
	})
	if err != nil {
		s.logger.Warnw("conference store unavailable, admitting without gate", "room_id", roomID, "error", err)
		return nil
	}
	if conf == nil {
		return nil
	}

	if conf.Locked {
		return domain.ErrRoomLocked
	}
	if conf.MaxParticipants > 0 {
		if room, ok := s.registry.Get(roomID); ok && room.Size() >= conf.MaxParticipants {
			return domain.ErrRoomFull
		}
	}
	return nil
}

func (s *roomService) Leave(client domain.Client) {
	roomID, userID := client.RoomID(), client.UserID()
	if roomID == "" || userID == "" {
		return
	}
	client.Unbind()

	room, ok := s.registry.Get(roomID)
	if !ok {
		return
	}

	res := room.Remove(userID, client)
	if !res.Removed {
		return
	}
	s.metrics.ParticipantLeft(client.DeviceClass())

	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventUserLeft, map[string]interface{}{
		"userId": userID,
	}), "")

	switch {
	case res.Empty:
		// Empty rooms go immediately, not on the next sweep. Removal
		// re-checks emptiness so a join racing this leave keeps the room.
		if s.registry.RemoveIfEmpty(roomID) && s.sync != nil {
			go s.sync.MarkInactive(roomID)
		}
	case res.WasHost:
		s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventHostChanged, map[string]interface{}{
			"hostId":   res.NewHost,
			"settings": room.Settings(),
		}), "")
	}

	s.logger.Infow("participant left",
		"room_id", roomID,
		"user_id", userID,
		"was_host", res.WasHost,
		"new_host", res.NewHost,
		"room_empty", res.Empty,
	)
}

// bound resolves the room a client is joined to.
func (s *roomService) bound(client domain.Client) (*domain.Room, domain.UserID, error) {
	roomID, userID := client.RoomID(), client.UserID()
	if roomID == "" || userID == "" {
		return nil, "", domain.ErrNotJoined
	}
	room, ok := s.registry.Get(roomID)
	if !ok {
		return nil, "", domain.ErrRoomNotFound
	}
	return room, userID, nil
}

func (s *roomService) ToggleMedia(client domain.Client, mediaType string, enabled bool, target domain.UserID) error {
	room, userID, err := s.bound(client)
	if err != nil {
		return err
	}
	if mediaType != MediaAudio && mediaType != MediaVideo {
		return fmt.Errorf("unknown media type %q", mediaType)
	}

	subject := userID
	if target != "" && target != userID {
		// Only a host or admin may force-mute someone else's audio.
		if !room.IsHostOrAdmin(userID) {
			return domain.ErrPermissionDenied
		}
		if mediaType != MediaAudio || enabled {
			return domain.ErrPermissionDenied
		}
		subject = target
	}

	_, ok := room.UpdateParticipant(subject, func(p *domain.Participant) {
		if mediaType == MediaAudio {
			p.AudioEnabled = enabled
		} else {
			p.VideoEnabled = enabled
		}
	})
	if !ok {
		return domain.ErrParticipantNotFound
	}

	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventMediaStateChanged, map[string]interface{}{
		"userId":    subject,
		"mediaType": mediaType,
		"enabled":   enabled,
	}), userID)
	return nil
}

func (s *roomService) Chat(client domain.Client, text string) error {
	room, userID, err := s.bound(client)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("chat message must not be empty")
	}

	sender, _ := room.Participant(userID)
	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventChatMessage, map[string]interface{}{
		"messageId":   utils.GenerateMessageID(),
		"userId":      userID,
		"displayName": sender.DisplayName,
		"text":        text,
		"timestamp":   time.Now().UnixMilli(),
	}), userID)
	return nil
}

func (s *roomService) SetHandRaised(client domain.Client, raised bool) error {
	room, userID, err := s.bound(client)
	if err != nil {
		return err
	}
	if _, ok := room.UpdateParticipant(userID, func(p *domain.Participant) {
		p.HandRaised = raised
	}); !ok {
		return domain.ErrParticipantNotFound
	}
	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventHandStateChanged, map[string]interface{}{
		"userId": userID,
		"raised": raised,
	}), userID)
	return nil
}

func (s *roomService) SetSpeaking(client domain.Client, speaking bool) error {
	room, userID, err := s.bound(client)
	if err != nil {
		return err
	}
	if _, ok := room.UpdateParticipant(userID, func(p *domain.Participant) {
		p.Speaking = speaking
	}); !ok {
		return domain.ErrParticipantNotFound
	}
	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventSpeakingStateChanged, map[string]interface{}{
		"userId":   userID,
		"speaking": speaking,
	}), userID)
	return nil
}

func (s *roomService) SetRecording(client domain.Client, recording bool) error {
	room, userID, err := s.bound(client)
	if err != nil {
		return err
	}
	if !room.IsHostOrAdmin(userID) {
		return domain.ErrPermissionDenied
	}
	if _, ok := room.UpdateParticipant(userID, func(p *domain.Participant) {
		p.RecordingActive = recording
	}); !ok {
		return domain.ErrParticipantNotFound
	}
	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventRecordingStateChanged, map[string]interface{}{
		"userId":      userID,
		"isRecording": recording,
	}), userID)
	return nil
}

func (s *roomService) UpdateHostSettings(client domain.Client, hostVideoPriority, allowParticipantDetach *bool) error {
	room, userID, err := s.bound(client)
	if err != nil {
		return err
	}
	if !room.IsHostOrAdmin(userID) {
		return domain.ErrPermissionDenied
	}

	settings := room.UpdateSettings(hostVideoPriority, allowParticipantDetach)
	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventHostSettingsUpdated, map[string]interface{}{
		"settings": settings,
	}), userID)
	return nil
}

func (s *roomService) ShareFile(client domain.Client, file map[string]interface{}) error {
	room, userID, err := s.bound(client)
	if err != nil {
		return err
	}

	data := make(map[string]interface{}, len(file)+1)
	for k, v := range file {
		data[k] = v
	}
	data["userId"] = userID

	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventFileShared, data), userID)
	return nil
}

func (s *roomService) CreatePoll(client domain.Client, pollID, question string, options []string) error {
	room, userID, err := s.bound(client)
	if err != nil {
		return err
	}
	if !room.IsHostOrAdmin(userID) {
		return domain.ErrPermissionDenied
	}
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("poll question must not be empty")
	}
	if len(options) < 2 {
		return fmt.Errorf("poll needs at least two options")
	}
	if pollID == "" {
		pollID = utils.GeneratePollID()
	}

	// The creator is included so it learns the server-assigned poll id.
	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventPollCreated, map[string]interface{}{
		"pollId":    pollID,
		"question":  question,
		"options":   options,
		"createdBy": userID,
	}), "")
	return nil
}

func (s *roomService) VotePoll(client domain.Client, pollID string, optionIndex int) error {
	room, userID, err := s.bound(client)
	if err != nil {
		return err
	}
	if pollID == "" {
		return fmt.Errorf("pollId is required")
	}
	if optionIndex < 0 {
		return fmt.Errorf("optionIndex must be >= 0")
	}
	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventPollVote, map[string]interface{}{
		"pollId":      pollID,
		"userId":      userID,
		"optionIndex": optionIndex,
	}), userID)
	return nil
}

func (s *roomService) EndPoll(client domain.Client, pollID string) error {
	room, userID, err := s.bound(client)
	if err != nil {
		return err
	}
	if !room.IsHostOrAdmin(userID) {
		return domain.ErrPermissionDenied
	}
	if pollID == "" {
		return fmt.Errorf("pollId is required")
	}
	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventPollEnded, map[string]interface{}{
		"pollId":  pollID,
		"endedBy": userID,
	}), "")
	return nil
}

func (s *roomService) SetRoomLock(roomID domain.RoomID, locked bool) {
	room, ok := s.registry.Get(roomID)
	if !ok {
		return
	}
	eventType := domain.EventRoomUnlocked
	if locked {
		eventType = domain.EventRoomLocked
	}
	s.broadcaster.Broadcast(room, domain.NewEvent(eventType, map[string]interface{}{
		"locked": locked,
	}), "")
}

func (s *roomService) TerminateRoom(ctx context.Context, roomID domain.RoomID) {
	room, ok := s.registry.Get(roomID)
	if !ok {
		return
	}

	s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventConferenceTerminated, nil), "")
	for _, c := range room.AllClients() {
		c.Unbind()
		c.Close("conference terminated")
	}
	s.registry.Remove(roomID)
	if s.sync != nil {
		go s.sync.MarkInactive(roomID)
	}
	s.logger.Infow("room terminated", "room_id", roomID)
}

func (s *roomService) Shutdown() {
	for _, room := range s.registry.Rooms() {
		s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventServerShutdown, nil), "")
		for _, c := range room.AllClients() {
			c.Unbind()
			c.Close("server shutting down")
		}
		s.registry.Remove(room.ID)
	}
}
