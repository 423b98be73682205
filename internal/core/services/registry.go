package services

import (
	"sync"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
)

// Registry is the process-wide room table. It is the only place rooms are
// created. Insert and remove serialize on the registry lock; access to a
// resolved room serializes on that room's own lock.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomID]*domain.Room
	metrics ports.MetricsRecorder
}

// NewRegistry creates an empty registry.
func NewRegistry(metrics ports.MetricsRecorder) *Registry {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Registry{
		rooms:   make(map[domain.RoomID]*domain.Room),
		metrics: metrics,
	}
}

// GetOrCreate resolves a room, creating it lazily on first join.
func (r *Registry) GetOrCreate(id domain.RoomID) *domain.Room {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return room
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[id]; ok {
		return room
	}
	room = domain.NewRoom(id)
	r.rooms[id] = room
	r.metrics.RoomCreated()
	return room
}

// Get resolves an existing room.
func (r *Registry) Get(id domain.RoomID) (*domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Remove drops a room from the registry.
func (r *Registry) Remove(id domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; ok {
		delete(r.rooms, id)
		r.metrics.RoomClosed()
	}
}

// RemoveIfEmpty drops a room only if it is still empty at removal time,
// re-checked under the registry lock. A join that raced the last leave keeps
// the room alive. Reports whether the room was removed.
func (r *Registry) RemoveIfEmpty(id domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || !room.Empty() {
		return false
	}
	delete(r.rooms, id)
	r.metrics.RoomClosed()
	return true
}

// Rooms returns a snapshot of all live rooms.
func (r *Registry) Rooms() []*domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
