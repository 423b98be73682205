package domain

// DeviceClass partitions connections for payload shaping and heartbeat
// cadence.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
)

// Client is the transport-level handle a Room holds for each joined
// participant. Implementations must make Send safe for concurrent use and
// must never block the caller on a slow socket.
type Client interface {
	UserID() UserID
	RoomID() RoomID
	DeviceClass() DeviceClass

	// Bind/Unbind track which room and participant the connection carries.
	// A connection is unowned (empty ids) before join and after leave.
	Bind(roomID RoomID, userID UserID)
	Unbind()

	// Send encodes the event for this connection's device class and queues it.
	Send(ev *Event) error
	// SendEncoded queues an already encoded frame.
	SendEncoded(data []byte) error

	// Alive reports whether the connection has shown traffic since the last
	// heartbeat tick.
	Alive() bool

	// Close tears the transport down. Safe to call more than once.
	Close(reason string)
}
