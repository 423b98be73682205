package ports

import "huddle/internal/core/domain"

// MetricsRecorder receives counters from the signaling core. The Prometheus
// collector implements it; tests use NopMetrics.
type MetricsRecorder interface {
	RoomCreated()
	RoomClosed()
	ParticipantJoined(class domain.DeviceClass)
	ParticipantLeft(class domain.DeviceClass)
	EventBroadcast(eventType domain.EventType, receivers int)
	RelayRouted(kind string)
	RelayDropped(reason string)
	HeartbeatTimeout(class domain.DeviceClass)
	RoomsSwept(count int)
	ConferenceSyncFailed()
}

// NopMetrics is a MetricsRecorder that discards everything.
type NopMetrics struct{}

func (NopMetrics) RoomCreated()                                    {}
func (NopMetrics) RoomClosed()                                     {}
func (NopMetrics) ParticipantJoined(domain.DeviceClass)            {}
func (NopMetrics) ParticipantLeft(domain.DeviceClass)              {}
func (NopMetrics) EventBroadcast(domain.EventType, int)            {}
func (NopMetrics) RelayRouted(string)                              {}
func (NopMetrics) RelayDropped(string)                             {}
func (NopMetrics) HeartbeatTimeout(domain.DeviceClass)             {}
func (NopMetrics) RoomsSwept(int)                                  {}
func (NopMetrics) ConferenceSyncFailed()                           {}
