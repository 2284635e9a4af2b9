package domain

import (
	"time"
)

// Session binds a live connection to a chosen username and room.
type Session struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Room     string    `json:"room"`
	JoinedAt time.Time `json:"-"`
	Remote   string    `json:"-"`

	seq uint64
}

func NewSession(id, username, room, remote string, joinedAt time.Time) Session {
	return Session{
		ID:       id,
		Username: username,
		Room:     room,
		JoinedAt: joinedAt,
		Remote:   remote,
	}
}

func (s Session) String() string {
	return s.Username + "@" + s.Room + "(" + s.ID + ")"
}
