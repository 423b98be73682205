package ports

import (
	"context"

	"huddle/internal/core/domain"
)

// ConferenceRepository is the persisted conference record store. The
// signaling core calls it for best-effort bookkeeping only and never blocks
// correctness on its results.
type ConferenceRepository interface {
	Create(ctx context.Context, conf *domain.Conference) error
	GetByID(ctx context.Context, id domain.RoomID) (*domain.Conference, error)
	Update(ctx context.Context, conf *domain.Conference) error
	Delete(ctx context.Context, id domain.RoomID) error
	ListActive(ctx context.Context) ([]*domain.Conference, error)
}
