package monitoring

import (
	"huddle/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	roomsActive       prometheus.Gauge
	roomsCreatedTotal prometheus.Counter
	roomsSweptTotal   prometheus.Counter

	participantsConnected *prometheus.GaugeVec
	participantsTotal     *prometheus.CounterVec

	eventsBroadcastTotal *prometheus.CounterVec
	eventReceiversTotal  *prometheus.CounterVec

	relayRoutedTotal  *prometheus.CounterVec
	relayDroppedTotal *prometheus.CounterVec

	heartbeatTimeoutsTotal *prometheus.CounterVec
	conferenceSyncFailures prometheus.Counter
}

// NewPrometheusCollector registers the signaling metrics with reg. Pass nil
// to use the default registerer; tests pass their own registry so repeated
// construction never double-registers.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_rooms_active",
			Help: "Number of rooms currently in the registry",
		}),

		roomsCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "huddle_rooms_created_total",
			Help: "Total number of rooms created",
		}),

		roomsSweptTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "huddle_rooms_swept_total",
			Help: "Total number of rooms removed by the cleanup sweeper",
		}),

		participantsConnected: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "huddle_participants_connected",
			Help: "Participants currently connected",
		}, []string{"device_class"}),

		participantsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_participants_joined_total",
			Help: "Total participant joins",
		}, []string{"device_class"}),

		eventsBroadcastTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_events_broadcast_total",
			Help: "Total events fanned out to rooms",
		}, []string{"event_type"}),

		eventReceiversTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_event_receivers_total",
			Help: "Total event deliveries, counted per receiving connection",
		}, []string{"event_type"}),

		relayRoutedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_relay_routed_total",
			Help: "Signaling envelopes routed point-to-point",
		}, []string{"kind"}),

		relayDroppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_relay_dropped_total",
			Help: "Signaling envelopes dropped instead of routed",
		}, []string{"reason"}),

		heartbeatTimeoutsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_heartbeat_timeouts_total",
			Help: "Connections terminated by the liveness supervisor",
		}, []string{"device_class"}),

		conferenceSyncFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "huddle_conference_sync_failures_total",
			Help: "Failed best-effort conference store updates",
		}),
	}
}

func (p *PrometheusCollector) RoomCreated() {
	p.roomsCreatedTotal.Inc()
	p.roomsActive.Inc()
}

func (p *PrometheusCollector) RoomClosed() {
	p.roomsActive.Dec()
}

func (p *PrometheusCollector) ParticipantJoined(class domain.DeviceClass) {
	p.participantsTotal.WithLabelValues(string(class)).Inc()
	p.participantsConnected.WithLabelValues(string(class)).Inc()
}

func (p *PrometheusCollector) ParticipantLeft(class domain.DeviceClass) {
	p.participantsConnected.WithLabelValues(string(class)).Dec()
}

func (p *PrometheusCollector) EventBroadcast(eventType domain.EventType, receivers int) {
	p.eventsBroadcastTotal.WithLabelValues(string(eventType)).Inc()
	p.eventReceiversTotal.WithLabelValues(string(eventType)).Add(float64(receivers))
}

func (p *PrometheusCollector) RelayRouted(kind string) {
	p.relayRoutedTotal.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) RelayDropped(reason string) {
	p.relayDroppedTotal.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) HeartbeatTimeout(class domain.DeviceClass) {
	p.heartbeatTimeoutsTotal.WithLabelValues(string(class)).Inc()
}

func (p *PrometheusCollector) RoomsSwept(count int) {
	p.roomsSweptTotal.Add(float64(count))
}

func (p *PrometheusCollector) ConferenceSyncFailed() {
	p.conferenceSyncFailures.Inc()
}
