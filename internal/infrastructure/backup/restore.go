package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	"huddle/pkg/backup"

	"go.uber.org/zap"
)

// Restorer loads conference records from the most recent snapshot back into
// the store. It runs once at startup and never overwrites records that
// already exist.
type Restorer struct {
	snapshots   *backup.Service
	conferences ports.ConferenceRepository
	logger      *zap.SugaredLogger
}

// NewRestorer creates a restorer.
func NewRestorer(snapshots *backup.Service, conferences ports.ConferenceRepository, logger *zap.SugaredLogger) *Restorer {
	return &Restorer{
		snapshots:   snapshots,
		conferences: conferences,
		logger:      logger,
	}
}

// RestoreLatest loads the newest snapshot into the conference store and
// returns how many records were restored. With no snapshots present it is
// a no-op.
func (r *Restorer) RestoreLatest(ctx context.Context) (int, error) {
	name, snap, err := r.snapshots.Latest(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	if snap == nil {
		return 0, nil
	}

	restored := 0
	for _, record := range snap.Records {
		var conf domain.Conference
		if err := json.Unmarshal(record, &conf); err != nil {
			r.logger.Warnw("skipping unreadable snapshot record", "snapshot", name, "error", err)
			continue
		}
		if conf.ID == "" {
			r.logger.Warnw("skipping snapshot record without id", "snapshot", name)
			continue
		}

		err := r.conferences.Create(ctx, &conf)
		switch {
		case err == nil:
			restored++
		case errors.Is(err, domain.ErrConferenceExists):
			// Live record wins over the snapshot copy.
		default:
			return restored, fmt.Errorf("failed to restore conference %s: %w", conf.ID, err)
		}
	}

	r.logger.Infow("snapshot restored", "snapshot", name, "restored", restored, "total", len(snap.Records))
	return restored, nil
}
