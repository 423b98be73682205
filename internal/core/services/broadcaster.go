package services

import (
	"huddle/internal/core/domain"
	"huddle/internal/core/ports"

	"go.uber.org/zap"
)

// Broadcaster fans events out to every connection in a room, encoding the
// payload once per device class rather than once per receiver. Delivery order
// within a room is the order broadcasts are issued; the per-room lock held
// during enqueue guarantees no interleaving.
type Broadcaster struct {
	encoders map[domain.DeviceClass]ports.EventEncoder
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

// NewBroadcaster wires the per-device-class encoders.
func NewBroadcaster(encoders map[domain.DeviceClass]ports.EventEncoder, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *Broadcaster {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Broadcaster{
		encoders: encoders,
		metrics:  metrics,
		logger:   logger,
	}
}

// Broadcast delivers ev to every connection in the room except exclude.
// Sends only enqueue; a slow receiver can never stall the room.
func (b *Broadcaster) Broadcast(room *domain.Room, ev *domain.Event, exclude domain.UserID) {
	payloads := make(map[domain.DeviceClass][]byte, len(b.encoders))
	receivers := 0

	room.ForEachClient(exclude, func(c domain.Client) {
		class := c.DeviceClass()
		data, ok := payloads[class]
		if !ok {
			enc, found := b.encoders[class]
			if !found {
				enc = b.encoders[domain.DeviceDesktop]
			}
			var err error
			data, err = enc.Encode(ev)
			if err != nil {
				b.logger.Errorw("failed to encode event",
					"event", ev.Type,
					"device_class", class,
					"error", err,
				)
				return
			}
			payloads[class] = data
		}

		if err := c.SendEncoded(data); err != nil {
			b.logger.Debugw("failed to queue event",
				"event", ev.Type,
				"user_id", c.UserID(),
				"error", err,
			)
			return
		}
		receivers++
	})

	b.metrics.EventBroadcast(ev.Type, receivers)
}
