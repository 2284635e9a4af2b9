package usecase

import (
	"context"
	"time"

	"github.com/ponyo877/roomcast/server/domain"
)

// MessageStore is the bounded, room-partitioned message history. Every stored
// message lives in its room partition and in the global partition; each
// partition evicts oldest-first beyond the retention bound.
type MessageStore interface {
	// Append assigns id and timestamp and stores msg in both partitions.
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)
	Query(ctx context.Context, room string, q domain.MessageQuery) ([]domain.Message, error)
	// Recent returns the newest entries of the global partition, oldest first.
	Recent(ctx context.Context, limit int) ([]domain.Message, error)
	// Get and the Record methods only see room's partition and return
	// domain.ErrNotFound for anything else.
	Get(ctx context.Context, room string, messageID int64) (domain.Message, error)
	RecordReaction(ctx context.Context, room string, messageID int64, userID, emoji string) error
	RecordRead(ctx context.Context, room string, messageID int64, readerID string) error
	Close() error
}

// IDGenerator hands out strictly increasing message ids with their creation instant.
type IDGenerator interface {
	Next() (int64, time.Time)
}

// Conn is the hub's view of a live client connection.
type Conn interface {
	ID() string
	Remote() string
	// Deliver queues ev without blocking and reports false when the outbound
	// buffer is full.
	Deliver(ev domain.StreamEvent) bool
	// Close tears the transport down. It must not call back into the hub.
	Close(reason error)
}
