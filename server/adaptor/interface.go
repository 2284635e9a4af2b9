package adaptor

import (
	"context"

	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/usecase"
)

type Usecase interface {
	Attach(ctx context.Context, conn usecase.Conn) error
	Dispatch(ctx context.Context, connID string, req domain.StreamRequest) error
	Detach(ctx context.Context, connID string) error
	Messages(ctx context.Context, room string, q domain.MessageQuery) ([]domain.Message, error)
	RecentMessages(ctx context.Context, limit int) ([]domain.Message, error)
	Sessions(ctx context.Context) ([]domain.Session, error)
	Stats(ctx context.Context) (domain.StreamStats, error)
}
