package domain

import "slices"

type SessionLookup interface {
	Get(connID string) (Session, bool)
}

// TypingTracker keeps the connections currently signalling "typing". Flags
// never expire on their own; they are cleared by the same connection or by
// its disconnect.
type TypingTracker struct {
	sessions SessionLookup
	order    []string
	roomOf   map[string]string
}

func NewTypingTracker(sessions SessionLookup) *TypingTracker {
	return &TypingTracker{
		sessions: sessions,
		roomOf:   make(map[string]string),
	}
}

// SetTyping adds or removes connID from its room's typing set and reports
// whether the set changed. Setting typing on a connection without a session
// is a no-op. Clearing works after the session is gone.
func (t *TypingTracker) SetTyping(connID string, typing bool) bool {
	if !typing {
		return t.clear(connID)
	}
	s, ok := t.sessions.Get(connID)
	if !ok {
		return false
	}
	if room, ok := t.roomOf[connID]; ok {
		if room == s.Room {
			return false
		}
		t.clear(connID)
	}
	t.roomOf[connID] = s.Room
	t.order = append(t.order, connID)
	return true
}

func (t *TypingTracker) clear(connID string) bool {
	if _, ok := t.roomOf[connID]; !ok {
		return false
	}
	delete(t.roomOf, connID)
	t.order = slices.DeleteFunc(t.order, func(id string) bool { return id == connID })
	return true
}

func (t *TypingTracker) IsTyping(connID string) bool {
	_, ok := t.roomOf[connID]
	return ok
}

// TypingList returns the usernames typing in room, in the order they started.
// Entries whose session vanished or moved are skipped.
func (t *TypingTracker) TypingList(room string) []string {
	names := make([]string, 0)
	for _, id := range t.order {
		if t.roomOf[id] != room {
			continue
		}
		s, ok := t.sessions.Get(id)
		if !ok || s.Room != room {
			continue
		}
		names = append(names, s.Username)
	}
	return names
}

// AllTyping is TypingList across every room.
func (t *TypingTracker) AllTyping() []string {
	names := make([]string, 0)
	for _, id := range t.order {
		s, ok := t.sessions.Get(id)
		if !ok || s.Room != t.roomOf[id] {
			continue
		}
		names = append(names, s.Username)
	}
	return names
}
