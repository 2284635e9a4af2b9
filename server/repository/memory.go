package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/usecase"
)

// DefaultRetention is how many messages each partition keeps.
const DefaultRetention = 100

// MemoryStore keeps history in process. A message appended once is shared
// by its room partition and the global partition, so a reaction recorded
// through the room is visible from both.
//
// MemoryStore is not safe for concurrent use; the hub serializes access.
type MemoryStore struct {
	ids       usecase.IDGenerator
	retention int
	rooms     map[string][]*domain.Message
	global    []*domain.Message
}

func NewMemoryStore(ids usecase.IDGenerator, retention int) *MemoryStore {
	if retention < 1 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		ids:       ids,
		retention: retention,
		rooms:     make(map[string][]*domain.Message),
	}
}

func (s *MemoryStore) Append(_ context.Context, msg domain.Message) (domain.Message, error) {
	if err := msg.Validate(); err != nil {
		return domain.Message{}, err
	}
	msg.ID, msg.Timestamp = s.ids.Next()
	stored := msg.Clone()
	s.rooms[msg.Room] = appendBounded(s.rooms[msg.Room], &stored, s.retention)
	s.global = appendBounded(s.global, &stored, s.retention)
	return stored.Clone(), nil
}

func appendBounded(part []*domain.Message, m *domain.Message, limit int) []*domain.Message {
	part = append(part, m)
	if over := len(part) - limit; over > 0 {
		part = slices.Delete(part, 0, over)
	}
	return part
}

func (s *MemoryStore) Query(_ context.Context, room string, q domain.MessageQuery) ([]domain.Message, error) {
	return q.Apply(snapshot(s.rooms[room])), nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]domain.Message, error) {
	return domain.MessageQuery{Limit: limit}.Apply(snapshot(s.global)), nil
}

func (s *MemoryStore) Get(_ context.Context, room string, messageID int64) (domain.Message, error) {
	m, err := s.find(room, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	return m.Clone(), nil
}

func (s *MemoryStore) RecordReaction(_ context.Context, room string, messageID int64, userID, emoji string) error {
	m, err := s.find(room, messageID)
	if err != nil {
		return err
	}
	m.SetReaction(userID, emoji)
	return nil
}

func (s *MemoryStore) RecordRead(_ context.Context, room string, messageID int64, readerID string) error {
	m, err := s.find(room, messageID)
	if err != nil {
		return err
	}
	m.MarkRead(readerID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// find relies on ids increasing in append order.
func (s *MemoryStore) find(room string, messageID int64) (*domain.Message, error) {
	part := s.rooms[room]
	i, ok := slices.BinarySearchFunc(part, messageID, func(m *domain.Message, id int64) int {
		return cmp.Compare(m.ID, id)
	})
	if !ok {
		return nil, fmt.Errorf("message %d in room %q: %w", messageID, room, domain.ErrNotFound)
	}
	return part[i], nil
}

func snapshot(part []*domain.Message) []domain.Message {
	out := make([]domain.Message, len(part))
	for i, m := range part {
		out[i] = m.Clone()
	}
	return out
}
