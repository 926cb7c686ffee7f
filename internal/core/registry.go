package core

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultRoom always exists and is where every session lands on connect.
const DefaultRoom = "1"

// session is the registry's record of one live connection. The registry owns
// the record; the transport layer owns only the connection handle and the
// receiving end of the delivery channel.
type session struct {
	id       string
	name     string
	room     string
	delivery chan<- Envelope
}

// room groups sessions that share message visibility. Rooms are created
// lazily on first reference and never destroyed.
type room struct {
	members map[string]*session
	history []ChatEntry
}

// Registry is the single source of truth for sessions, names, room
// membership, and room history. All mutable state sits behind one mutex so
// no operation ever needs a second lock; every multi-step operation
// (check-then-set, mutate-then-fan-out) runs inside one critical section.
// No I/O happens under the lock: fan-out uses non-blocking channel sends.
type Registry struct {
	log *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	rooms    map[string]*room
}

// NewRegistry constructs an empty registry with the default room present.
func NewRegistry(logger *zerolog.Logger) *Registry {
	r := &Registry{
		log:      logger,
		sessions: make(map[string]*session),
		rooms:    make(map[string]*room),
	}
	r.rooms[DefaultRoom] = newRoom()
	return r
}

func newRoom() *room {
	return &room{members: make(map[string]*session)}
}

// roomLocked returns the named room, creating it lazily. Callers hold r.mu.
func (r *Registry) roomLocked(name string) *room {
	rm, ok := r.rooms[name]
	if !ok {
		rm = newRoom()
		r.rooms[name] = rm
	}
	return rm
}

// RegisterSession adds a session record with an empty name in the default
// room. Every connected session receives default-room broadcasts immediately,
// before any name is registered. No-op if the id is already present.
func (r *Registry) RegisterSession(id string, delivery chan<- Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		r.log.Warn().Str("session_id", id).Msg("duplicate session registration ignored")
		return
	}

	s := &session{id: id, room: DefaultRoom, delivery: delivery}
	r.sessions[id] = s
	r.roomLocked(DefaultRoom).members[id] = s
}

// RemoveSession deletes the session record and its room membership.
// Idempotent; the session's name becomes immediately available again.
func (r *Registry) RemoveSession(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	if rm, ok := r.rooms[s.room]; ok {
		delete(rm.members, id)
	}
}

// SnapshotHistory returns a copy of the room's history in append order.
func (r *Registry) SnapshotHistory(roomName string) []ChatEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.roomLocked(roomName)
	out := make([]ChatEntry, len(rm.history))
	copy(out, rm.history)
	return out
}

// IsNameAvailable reports whether no session currently in the room holds the
// candidate name. Comparison is case-sensitive.
func (r *Registry) IsNameAvailable(roomName, candidate string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nameAvailableLocked(roomName, candidate)
}

func (r *Registry) nameAvailableLocked(roomName, candidate string) bool {
	rm, ok := r.rooms[roomName]
	if !ok {
		return true
	}
	for _, member := range rm.members {
		if member.name == candidate {
			return false
		}
	}
	return true
}

// SetName unconditionally assigns the name to the session. Callers must have
// verified availability inside the same critical section; prefer ClaimName.
func (r *Registry) SetName(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.name = name
	}
}

// ClaimName atomically checks availability in the session's current room and
// assigns the name. Returns false, with no state change, if the name is empty
// or already held by a member of that room. The check and the set share one
// lock acquisition, so two sessions can never claim the same name
// concurrently.
func (r *Registry) ClaimName(id, name string) bool {
	if name == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	if !r.nameAvailableLocked(s.room, name) {
		return false
	}
	s.name = name
	return true
}

// JoinRoom moves the session into the named room and announces it to every
// other current member. The joiner itself does not receive the notice.
func (r *Registry) JoinRoom(id, roomName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}

	if prev, ok := r.rooms[s.room]; ok {
		delete(prev.members, id)
	}
	rm := r.roomLocked(roomName)
	rm.members[id] = s
	s.room = roomName

	notice := Envelope{Kind: EnvelopeJoined, Notice: fmt.Sprintf("%s joined.", s.name)}
	for memberID, member := range rm.members {
		if memberID == id {
			continue
		}
		r.deliver(member, notice)
	}
}

// AppendMessage appends the entry to the room's history and fans it out to
// every member, the sender included. The sender sees its own message through
// the same path as everyone else.
func (r *Registry) AppendMessage(roomName string, entry ChatEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.roomLocked(roomName)
	rm.history = append(rm.history, entry)

	env := Envelope{Kind: EnvelopeNewMessage, Entry: entry}
	for _, member := range rm.members {
		r.deliver(member, env)
	}
}

// CurrentRoom returns the room the session currently belongs to.
func (r *Registry) CurrentRoom(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return "", false
	}
	return s.room, true
}

// deliver pushes an envelope onto a member's delivery channel without
// blocking. A full channel means a slow or dying consumer; the envelope is
// dropped for that member only so the rest of the room is never stalled.
func (r *Registry) deliver(member *session, env Envelope) {
	select {
	case member.delivery <- env:
	default:
		r.log.Debug().Str("session_id", member.id).Msg("delivery channel full, dropping envelope")
	}
}
