package services

import (
	"context"
	"errors"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	"huddle/pkg/retry"

	"go.uber.org/zap"
)

// ConferenceSync pushes live-room lifecycle changes back to the persisted
// conference store. Every call is best-effort with asynchronous backoff: the
// in-memory registry stays authoritative for "live" status, so a store
// failure is logged and counted, never propagated.
type ConferenceSync struct {
	repo     ports.ConferenceRepository
	retryCfg retry.Config
	timeout  time.Duration
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

// NewConferenceSync builds a sync helper. repo may be nil, which turns every
// call into a no-op.
func NewConferenceSync(repo ports.ConferenceRepository, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *ConferenceSync {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &ConferenceSync{
		repo:     repo,
		retryCfg: retry.DefaultConfig(),
		timeout:  30 * time.Second,
		metrics:  metrics,
		logger:   logger,
	}
}

// MarkStarted flips the conference active and records its start time. Safe to
// call on every first join; an already-started conference is left unchanged.
func (s *ConferenceSync) MarkStarted(id domain.RoomID) {
	s.apply(id, "mark started", func(conf *domain.Conference) bool {
		if conf.Active && conf.StartedAt != nil {
			return false
		}
		now := time.Now()
		conf.Active = true
		if conf.StartedAt == nil {
			conf.StartedAt = &now
		}
		return true
	})
}

// MarkInactive flips the conference inactive and records its duration.
func (s *ConferenceSync) MarkInactive(id domain.RoomID) {
	s.apply(id, "mark inactive", func(conf *domain.Conference) bool {
		if !conf.Active {
			return false
		}
		conf.Active = false
		if conf.StartedAt != nil {
			conf.Duration = time.Since(*conf.StartedAt)
		}
		return true
	})
}

func (s *ConferenceSync) apply(id domain.RoomID, what string, mutate func(*domain.Conference) bool) {
	if s == nil || s.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := retry.Do(ctx, s.retryCfg, func() error {
		conf, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrConferenceNotFound) {
				// Ad-hoc room with no persisted record; nothing to sync.
				return nil
			}
			return err
		}
		if !mutate(conf) {
			return nil
		}
		return s.repo.Update(ctx, conf)
	})
	if err != nil {
		s.metrics.ConferenceSyncFailed()
		s.logger.Warnw("conference sync failed",
			"conference_id", id,
			"operation", what,
			"error", err,
		)
	}
}
