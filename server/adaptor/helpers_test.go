package adaptor

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/repository"
	"github.com/ponyo877/roomcast/server/usecase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startUsecase(t *testing.T, opts ...usecase.Option) *usecase.StreamUsecase {
	t.Helper()
	ids := domain.NewIDSequence(nil)
	u := usecase.NewStreamUsecase(discardLogger(), repository.NewMemoryStore(ids, repository.DefaultRetention), ids, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go u.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-u.Done()
	})
	return u
}
