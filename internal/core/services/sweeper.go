package services

import (
	"context"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"

	"go.uber.org/zap"
)

// Sweeper periodically evicts dead connections and garbage-collects rooms
// that are empty or have outlived the retention window.
type Sweeper struct {
	registry    *Registry
	rooms       ports.RoomService
	broadcaster *Broadcaster
	sync        *ConferenceSync
	interval    time.Duration
	retention   time.Duration
	metrics     ports.MetricsRecorder
	logger      *zap.SugaredLogger

	now       func() time.Time
	integrity func(*domain.Room) bool
}

func NewSweeper(
	registry *Registry,
	rooms ports.RoomService,
	broadcaster *Broadcaster,
	sync *ConferenceSync,
	interval, retention time.Duration,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *Sweeper {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Sweeper{
		registry:    registry,
		rooms:       rooms,
		broadcaster: broadcaster,
		sync:        sync,
		interval:    interval,
		retention:   retention,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
		integrity:   (*domain.Room).EnsureHostIntegrity,
	}
}

// Start blocks until ctx is cancelled. Run it in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs a single pass over every room.
func (s *Sweeper) Sweep() {
	swept := 0
	for _, room := range s.registry.Rooms() {
		// Connections the liveness supervisor already closed but whose
		// cleanup never ran, e.g. a wedged read loop.
		for _, c := range room.DeadClients() {
			s.logger.Warnw("evicting dead connection",
				"room_id", room.ID,
				"user_id", c.UserID(),
				"device_class", c.DeviceClass(),
			)
			s.rooms.Leave(c)
		}

		if cleared := s.integrity(room); cleared {
			s.logger.Warnw("cleared stale host reference", "room_id", room.ID)
			// The room is hostless until someone joins claiming the role.
			if s.broadcaster != nil {
				s.broadcaster.Broadcast(room, domain.NewEvent(domain.EventHostChanged, map[string]interface{}{
					"hostId":   domain.UserID(""),
					"settings": room.Settings(),
				}), "")
			}
		}

		stale := s.now().Sub(room.CreatedAt()) > s.retention
		if !room.Empty() && !stale {
			continue
		}
		if stale {
			// 24h retention expired with people still inside.
			for _, c := range room.AllClients() {
				c.Unbind()
				c.Close("room retention expired")
			}
			s.registry.Remove(room.ID)
		} else if !s.registry.RemoveIfEmpty(room.ID) {
			// Someone joined since the emptiness check.
			continue
		}
		swept++
		if s.sync != nil {
			go s.sync.MarkInactive(room.ID)
		}
		s.logger.Infow("swept room", "room_id", room.ID, "stale", stale, "age", room.Age())
	}
	if swept > 0 {
		s.metrics.RoomsSwept(swept)
	}
}
