package domain

// EventType enumerates every server-to-client event kind.
type EventType string

const (
	EventConnectionEstablished EventType = "connection-established"
	EventRoomUsers             EventType = "room-users"
	EventUserJoined            EventType = "user-joined"
	EventUserLeft              EventType = "user-left"
	EventHostChanged           EventType = "host-changed"
	EventMediaStateChanged     EventType = "media-state-changed"
	EventChatMessage           EventType = "chat-message"
	EventHandStateChanged      EventType = "hand-state-changed"
	EventSpeakingStateChanged  EventType = "speaking-state-changed"
	EventRecordingStateChanged EventType = "recording-state-changed"
	EventHostSettingsUpdated   EventType = "host-settings-updated"
	EventFileShared            EventType = "file-shared"
	EventPollCreated           EventType = "poll-created"
	EventPollVote              EventType = "poll-vote"
	EventPollEnded             EventType = "poll-ended"
	EventRoomLocked            EventType = "room-locked"
	EventRoomUnlocked          EventType = "room-unlocked"
	EventConferenceTerminated  EventType = "conference-terminated"
	EventConnectionReplaced    EventType = "connection-replaced"
	EventConnectionTimeout     EventType = "connection-timeout"
	EventServerShutdown        EventType = "server-shutdown"
	EventHeartbeat             EventType = "heartbeat"
	EventError                 EventType = "error"
	EventPong                  EventType = "pong"
)

// Event is a room-scoped server-to-client notification. Data holds plain
// JSON-compatible values; the transport encoder decides the wire shape per
// device class.
type Event struct {
	Type EventType
	Data map[string]interface{}
}

// NewEvent builds an event. A nil data map is replaced with an empty one so
// encoders never see nil.
func NewEvent(t EventType, data map[string]interface{}) *Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Event{Type: t, Data: data}
}

// ErrorEvent builds the standard error notification sent to a single client.
func ErrorEvent(message string) *Event {
	return NewEvent(EventError, map[string]interface{}{"message": message})
}
