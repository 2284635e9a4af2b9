package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewConnectionID returns an opaque, lexically sortable id for a live connection.
func NewConnectionID() string {
	return ulid.Make().String()
}

// IDSequence hands out time-derived message ids. Ids strictly increase and the
// paired creation instants never go backwards, even if the wall clock does.
//
// An IDSequence is not safe for concurrent use; it is owned by the hub goroutine.
type IDSequence struct {
	now    func() time.Time
	last   int64
	lastAt time.Time
}

func NewIDSequence(now func() time.Time) *IDSequence {
	if now == nil {
		now = time.Now
	}
	return &IDSequence{now: now}
}

// Next returns the next message id together with its creation instant.
func (s *IDSequence) Next() (int64, time.Time) {
	at := s.now()
	if at.Before(s.lastAt) {
		at = s.lastAt
	}
	id := at.UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last, s.lastAt = id, at
	return id, at
}
