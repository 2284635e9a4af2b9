package domain

import (
	"fmt"
	"sort"
)

// SessionRegistry owns every Session, keyed by connection id. Rooms are not
// stored separately: a room is the set of sessions naming it.
//
// A SessionRegistry is not safe for concurrent use.
type SessionRegistry struct {
	sessions map[string]Session
	seq      uint64
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]Session),
	}
}

// Join creates or replaces the session for s.ID. Usernames are not required
// to be unique.
func (r *SessionRegistry) Join(s Session) Session {
	r.seq++
	s.seq = r.seq
	r.sessions[s.ID] = s
	return s
}

// Leave removes the session and returns it. The second result is false when
// there was nothing to remove.
func (r *SessionRegistry) Leave(connID string) (Session, bool) {
	s, ok := r.sessions[connID]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, connID)
	return s, true
}

func (r *SessionRegistry) Get(connID string) (Session, bool) {
	s, ok := r.sessions[connID]
	return s, ok
}

// Require is Get for actions that need a session. A connection without one
// yields ErrNotJoined.
func (r *SessionRegistry) Require(connID string) (Session, error) {
	s, ok := r.sessions[connID]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrNotJoined, connID)
	}
	return s, nil
}

// ListByRoom returns the room's sessions in join order.
func (r *SessionRegistry) ListByRoom(room string) []Session {
	members := make([]Session, 0)
	for _, s := range r.sessions {
		if s.Room == room {
			members = append(members, s)
		}
	}
	sortByJoin(members)
	return members
}

// List returns every session in join order, regardless of room.
func (r *SessionRegistry) List() []Session {
	all := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	sortByJoin(all)
	return all
}

// RoomCounts returns the number of sessions per non-empty room.
func (r *SessionRegistry) RoomCounts() map[string]int {
	counts := make(map[string]int)
	for _, s := range r.sessions {
		counts[s.Room]++
	}
	return counts
}

func (r *SessionRegistry) Len() int {
	return len(r.sessions)
}

func sortByJoin(sessions []Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].seq < sessions[j].seq
	})
}
