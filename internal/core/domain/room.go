package domain

import (
	"sync"
	"time"
)

// HostSettings are the host-configurable knobs of a room. They survive host
// migration unchanged.
type HostSettings struct {
	HostVideoPriority      bool `json:"hostVideoPriority"`
	AllowParticipantDetach bool `json:"allowParticipantDetach"`
}

// DefaultHostSettings returns the settings a room starts with.
func DefaultHostSettings() HostSettings {
	return HostSettings{HostVideoPriority: true, AllowParticipantDetach: true}
}

// Room is the in-memory unit of one active conference. It exclusively owns
// its participants and client connections; every mutation goes through the
// room's own mutex so a join and a leave can never interleave into an
// inconsistent state.
type Room struct {
	ID RoomID

	mu           sync.Mutex
	participants map[UserID]*Participant
	clients      map[UserID]Client
	joinOrder    []UserID
	hostID       UserID
	settings     HostSettings
	createdAt    time.Time
}

// NewRoom creates an empty room with default host settings.
func NewRoom(id RoomID) *Room {
	return &Room{
		ID:           id,
		participants: make(map[UserID]*Participant),
		clients:      make(map[UserID]Client),
		settings:     DefaultHostSettings(),
		createdAt:    time.Now(),
	}
}

// CreatedAt returns the room creation time.
func (r *Room) CreatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createdAt
}

// Age returns how long the room has existed.
func (r *Room) Age() time.Duration {
	return time.Since(r.CreatedAt())
}

// Size returns the number of participants.
func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// Empty reports whether no client connections remain.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients) == 0
}

// Add admits a client under the join request's identity, applying the host
// claim rules: the joiner becomes host if it claims host while the room has
// none, or if its id is already recorded as host. When a connection for the
// same user id already exists it is evicted first (last writer wins) and
// returned so the caller can notify and close it outside the lock.
func (r *Room) Add(c Client, req JoinRequest) (p Participant, replaced Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.clients[req.UserID]; ok {
		replaced = old
		delete(r.clients, req.UserID)
		delete(r.participants, req.UserID)
		r.dropFromOrder(req.UserID)
	}

	member := &Participant{
		ID:           req.UserID,
		DisplayName:  req.DisplayName,
		IsAdmin:      req.IsAdmin,
		VideoEnabled: true,
		AudioEnabled: true,
	}

	member.IsHost = (req.ClaimHost && r.hostID == "") || r.hostID == req.UserID
	if member.IsHost && r.hostID == "" {
		r.hostID = req.UserID
		if req.HostVideoPriority != nil {
			r.settings.HostVideoPriority = *req.HostVideoPriority
		}
		if req.AllowParticipantDetach != nil {
			r.settings.AllowParticipantDetach = *req.AllowParticipantDetach
		}
	}

	r.participants[req.UserID] = member
	r.clients[req.UserID] = c
	r.joinOrder = append(r.joinOrder, req.UserID)

	return *member, replaced
}

// RemoveResult describes the outcome of removing a member.
type RemoveResult struct {
	Removed bool
	WasHost bool
	Empty   bool
	// NewHost is set when host role migrated to the earliest remaining joiner.
	NewHost UserID
}

// Remove takes a member out of the room. When c is non-nil the removal only
// happens if c is still the connection the room holds for that user, which
// keeps a stale, already-replaced connection from evicting its successor.
// Host role migrates to the earliest remaining joiner.
func (r *Room) Remove(userID UserID, c Client) RemoveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.clients[userID]
	if !ok || (c != nil && current != c) {
		return RemoveResult{}
	}

	delete(r.clients, userID)
	delete(r.participants, userID)
	r.dropFromOrder(userID)

	res := RemoveResult{Removed: true, Empty: len(r.clients) == 0}
	if r.hostID == userID {
		res.WasHost = true
		r.hostID = ""
		if len(r.joinOrder) > 0 {
			r.hostID = r.joinOrder[0]
			if p, ok := r.participants[r.hostID]; ok {
				p.IsHost = true
			}
			res.NewHost = r.hostID
		}
	}
	return res
}

// Host returns the current host id, empty if none.
func (r *Room) Host() UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// Settings returns the current host settings.
func (r *Room) Settings() HostSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// UpdateSettings applies a partial settings update and returns the result.
func (r *Room) UpdateSettings(hostVideoPriority, allowParticipantDetach *bool) HostSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hostVideoPriority != nil {
		r.settings.HostVideoPriority = *hostVideoPriority
	}
	if allowParticipantDetach != nil {
		r.settings.AllowParticipantDetach = *allowParticipantDetach
	}
	return r.settings
}

// IsHostOrAdmin reports whether the user may perform host-gated actions.
func (r *Room) IsHostOrAdmin(userID UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hostID == userID {
		return true
	}
	p, ok := r.participants[userID]
	return ok && p.IsAdmin
}

// Participant returns a copy of a member's state.
func (r *Room) Participant(userID UserID) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// UpdateParticipant mutates a member's state under the room lock and returns
// the resulting copy.
func (r *Room) UpdateParticipant(userID UserID, fn func(*Participant)) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return Participant{}, false
	}
	fn(p)
	return *p, true
}

// Others returns the participants other than exclude, in join order. Used for
// the snapshot a joiner receives.
func (r *Room) Others(exclude UserID) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Participant, 0, len(r.participants))
	for _, id := range r.joinOrder {
		if id == exclude {
			continue
		}
		if p, ok := r.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// Client returns the live connection for a user.
func (r *Room) Client(userID UserID) (Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[userID]
	return c, ok
}

// ForEachClient runs fn for every connection except exclude while holding the
// room lock, so concurrent broadcasts cannot interleave event order. fn must
// not block.
func (r *Room) ForEachClient(exclude UserID, fn func(Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.joinOrder {
		if id == exclude {
			continue
		}
		if c, ok := r.clients[id]; ok {
			fn(c)
		}
	}
}

// DeadClients returns connections that have not shown traffic since the last
// heartbeat tick. Used by the sweeper.
func (r *Room) DeadClients() []Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dead []Client
	for _, c := range r.clients {
		if !c.Alive() {
			dead = append(dead, c)
		}
	}
	return dead
}

// AllClients returns a snapshot of every connection.
func (r *Room) AllClients() []Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Client, 0, len(r.clients))
	for _, id := range r.joinOrder {
		if c, ok := r.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// EnsureHostIntegrity clears a host pointer that no longer references a
// participant. Such a state should not occur under the room's serialization
// discipline; clearing is the safe recovery.
func (r *Room) EnsureHostIntegrity() (cleared bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hostID == "" {
		return false
	}
	if _, ok := r.participants[r.hostID]; !ok {
		r.hostID = ""
		return true
	}
	return false
}

// dropFromOrder removes an id from the join-order slice. Caller holds mu.
func (r *Room) dropFromOrder(userID UserID) {
	for i, id := range r.joinOrder {
		if id == userID {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			return
		}
	}
}
