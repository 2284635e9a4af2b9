package domain

import "errors"

var (
	// ErrNotFound is returned when a message, connection or session lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest marks input that fails validation. Callers report it to the
	// originating client and mutate nothing.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotJoined is returned for actions that need a session on an anonymous connection.
	ErrNotJoined = errors.New("connection has not joined a room")
)
