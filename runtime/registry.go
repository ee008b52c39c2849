// Package runtime handles session bookkeeping, room workers, event
// propagation, and eviction. It orchestrates the system without
// containing business logic or domain rules.
package runtime

import (
	"sync"

	"preview-lab/contract"
	"preview-lab/domain"
)

type Set map[string]struct{}

// Registry is the per-instance directory of live connections: who is
// connected (presence), with which identity, and in which rooms. It is
// the single source of truth for local delivery targets.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.EventSink // connection -> sink
	identities  map[string]domain.Identity    // connection -> identity
	roomMembers map[domain.RoomID]Set         // room -> connections
	presence    map[string]Set                // actor -> connections
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		identities:  make(map[string]domain.Identity),
		roomMembers: make(map[domain.RoomID]Set),
		presence:    make(map[string]Set),
	}
}

// Register records a freshly authenticated connection and its identity.
// Presence is tracked independently of room membership so direct
// delivery and "last connection for this user" detection keep working
// for connections that never join a room.
func (r *Registry) Register(identity domain.Identity, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[identity.ConnectionID] = sink
	r.identities[identity.ConnectionID] = identity

	if _, ok := r.presence[identity.SubjectID]; !ok {
		r.presence[identity.SubjectID] = make(Set)
	}
	r.presence[identity.SubjectID][identity.ConnectionID] = struct{}{}
}

// AddToRoom places a registered connection into a room. Joining twice
// is a no-op.
func (r *Registry) AddToRoom(connectionID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connectionID]; !ok {
		return
	}
	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][connectionID] = struct{}{}
}

// Unregister removes the connection from every room it participated in,
// from presence, and from the session directory, synchronously. It
// returns the identity and the affected rooms so the caller can emit
// participant_left events after the entry is already gone.
func (r *Registry) Unregister(connectionID string) (domain.Identity, []domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, known := r.identities[connectionID]
	if !known {
		return domain.Identity{}, nil
	}

	delete(r.sessions, connectionID)
	delete(r.identities, connectionID)

	if conns, ok := r.presence[identity.SubjectID]; ok {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.presence, identity.SubjectID)
		}
	}

	var affected []domain.RoomID
	for roomID, members := range r.roomMembers {
		if _, ok := members[connectionID]; !ok {
			continue
		}
		delete(members, connectionID)
		affected = append(affected, roomID)
		// Empty member sets are cleaned up to prevent leaks; the room
		// itself stays with the orchestrator until the reaper decides.
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
	return identity, affected
}

// SinksForRoom resolves the live delivery targets of a room. skipConn
// names a connection excluded from delivery (typically the emitter of a
// participant_joined event); empty means deliver to everyone.
func (r *Registry) SinksForRoom(roomID domain.RoomID, skipConn string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connectionID := range members {
		if connectionID == skipConn {
			continue
		}
		if sink, exists := r.sessions[connectionID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (r *Registry) SinksForActor(actorID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for connectionID := range r.presence[actorID] {
		if sink, exists := r.sessions[connectionID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// ActorIDsForRoom lists the distinct subject ids currently participating
// in the room. Room workers derive collaboratorIds from this on every
// join and leave.
func (r *Registry) ActorIDsForRoom(roomID domain.RoomID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for connectionID := range r.roomMembers[roomID] {
		if identity, ok := r.identities[connectionID]; ok {
			ids = append(ids, identity.SubjectID)
		}
	}
	return ids
}

func (r *Registry) IsParticipant(connectionID string, roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.roomMembers[roomID][connectionID]
	return ok
}

func (r *Registry) RoomSize(roomID domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.roomMembers[roomID])
}

// Stats counts connected clients and room participation entries.
func (r *Registry) Stats() (clients, participants int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, members := range r.roomMembers {
		participants += len(members)
	}
	return len(r.sessions), participants
}
