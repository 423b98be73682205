package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"huddle/internal/core/ports"
	"huddle/pkg/backup"

	"go.uber.org/zap"
)

// Scheduler periodically snapshots the conference store so records survive
// a restart of a memory-backed deployment.
type Scheduler struct {
	snapshots   *backup.Service
	conferences ports.ConferenceRepository
	interval    time.Duration
	retention   time.Duration
	logger      *zap.SugaredLogger
	stop        chan struct{}
}

// Config contains scheduler configuration.
type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

// NewScheduler creates a snapshot scheduler.
func NewScheduler(snapshots *backup.Service, conferences ports.ConferenceRepository, cfg Config, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		snapshots:   snapshots,
		conferences: conferences,
		interval:    cfg.Interval,
		retention:   cfg.Retention,
		logger:      logger,
		stop:        make(chan struct{}),
	}
}

// Start runs the snapshot loop until Stop is called or ctx is cancelled.
// An initial snapshot is taken immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx)

	for {
		select {
		case <-ticker.C:
			s.run(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates the snapshot loop.
func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) run(ctx context.Context) {
	snap, err := s.collect(ctx)
	if err != nil {
		s.logger.Errorw("failed to collect snapshot data", "error", err)
		return
	}

	name, err := s.snapshots.Write(ctx, snap)
	if err != nil {
		s.logger.Errorw("failed to write snapshot", "error", err)
		return
	}
	s.logger.Infow("snapshot written", "name", name, "conferences", len(snap.Records))

	if s.retention > 0 {
		removed, err := s.snapshots.Prune(ctx, time.Now().Add(-s.retention))
		if err != nil {
			s.logger.Warnw("failed to prune old snapshots", "error", err)
		} else if removed > 0 {
			s.logger.Infow("pruned old snapshots", "removed", removed)
		}
	}
}

func (s *Scheduler) collect(ctx context.Context) (*backup.Snapshot, error) {
	confs, err := s.conferences.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conferences: %w", err)
	}

	snap := &backup.Snapshot{
		Records: make([]json.RawMessage, 0, len(confs)),
		Metadata: map[string]interface{}{
			"conference_count": len(confs),
		},
	}
	for _, conf := range confs {
		data, err := json.Marshal(conf)
		if err != nil {
			s.logger.Warnw("failed to marshal conference", "conference_id", conf.ID, "error", err)
			continue
		}
		snap.Records = append(snap.Records, data)
	}
	return snap, nil
}
