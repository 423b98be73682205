package memory

import (
	"context"
	"sync"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
)

type MemoryConferenceRepository struct {
	mu          sync.RWMutex
	conferences map[domain.RoomID]*domain.Conference
}

func NewMemoryConferenceRepository() ports.ConferenceRepository {
	return &MemoryConferenceRepository{
		conferences: make(map[domain.RoomID]*domain.Conference),
	}
}

func (r *MemoryConferenceRepository) Create(ctx context.Context, conf *domain.Conference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conferences[conf.ID]; exists {
		return domain.ErrConferenceExists
	}
	if conf.CreatedAt.IsZero() {
		conf.CreatedAt = time.Now()
	}
	stored := *conf
	r.conferences[conf.ID] = &stored
	return nil
}

func (r *MemoryConferenceRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Conference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conf, ok := r.conferences[id]
	if !ok {
		return nil, domain.ErrConferenceNotFound
	}
	copied := *conf
	return &copied, nil
}

func (r *MemoryConferenceRepository) Update(ctx context.Context, conf *domain.Conference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conferences[conf.ID]; !ok {
		return domain.ErrConferenceNotFound
	}
	stored := *conf
	r.conferences[conf.ID] = &stored
	return nil
}

func (r *MemoryConferenceRepository) Delete(ctx context.Context, id domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conferences[id]; !ok {
		return domain.ErrConferenceNotFound
	}
	delete(r.conferences, id)
	return nil
}

func (r *MemoryConferenceRepository) ListActive(ctx context.Context) ([]*domain.Conference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Conference, 0)
	for _, conf := range r.conferences {
		if conf.Active {
			copied := *conf
			out = append(out, &copied)
		}
	}
	return out, nil
}
