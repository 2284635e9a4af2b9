package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName       = "github.com/ponyo877/roomcast/server/usecase"
	defaultInboxSize = 1024
)

var (
	// ErrClosed is returned once Run has stopped.
	ErrClosed = errors.New("stream usecase is closed")

	// ErrSlowConsumer is the close reason for connections that cannot keep up with fan-out.
	ErrSlowConsumer = errors.New("outbound buffer full")

	errShutdown = errors.New("server shutting down")
)

type Option func(*StreamUsecase)

func WithMetrics(m *metrics.Metrics) Option {
	return func(u *StreamUsecase) { u.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(u *StreamUsecase) { u.tracer = t }
}

func WithInboxSize(n int) Option {
	return func(u *StreamUsecase) {
		if n > 0 {
			u.inboxSize = n
		}
	}
}

func WithBroadcastPolicy(p domain.BroadcastPolicy) Option {
	return func(u *StreamUsecase) { u.policy = p }
}

// StreamUsecase is the room broadcast router. All session, typing and store
// state is touched only from the Run goroutine: every inbound event is handled
// to completion, fan-out included, before the next one starts.
type StreamUsecase struct {
	logger  *slog.Logger
	store   MessageStore
	ids     IDGenerator
	policy  domain.BroadcastPolicy
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time

	registry *domain.SessionRegistry
	typing   *domain.TypingTracker
	conns    map[string]Conn

	inboxSize int
	inbox     chan operation
	done      chan struct{}
	startTime time.Time
}

type operation func(ctx context.Context)

func NewStreamUsecase(logger *slog.Logger, store MessageStore, ids IDGenerator, opts ...Option) *StreamUsecase {
	registry := domain.NewSessionRegistry()
	u := &StreamUsecase{
		logger:    logger.With(slog.String("component", "stream_usecase")),
		store:     store,
		ids:       ids,
		policy:    domain.DefaultBroadcastPolicy(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		registry:  registry,
		typing:    domain.NewTypingTracker(registry),
		conns:     make(map[string]Conn),
		inboxSize: defaultInboxSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.metrics == nil {
		u.metrics = metrics.New(prometheus.NewRegistry())
	}
	u.inbox = make(chan operation, u.inboxSize)
	u.startTime = u.now()
	return u
}

// Run processes queued operations until ctx is cancelled, then closes every
// remaining connection.
func (u *StreamUsecase) Run(ctx context.Context) error {
	defer close(u.done)
	u.logger.Info("Event loop started", slog.String("typingScope", string(u.policy.TypingScope)), slog.String("readScope", string(u.policy.ReadScope)))
	for {
		select {
		case <-ctx.Done():
			u.shutdown()
			return nil
		case op := <-u.inbox:
			op(ctx)
		}
	}
}

// Done is closed after Run returns.
func (u *StreamUsecase) Done() <-chan struct{} {
	return u.done
}

func (u *StreamUsecase) shutdown() {
	u.logger.Info("Closing all active connections", slog.Int("count", len(u.conns)))
	for id, conn := range u.conns {
		conn.Close(errShutdown)
		delete(u.conns, id)
	}
}

func (u *StreamUsecase) submit(ctx context.Context, op operation) error {
	select {
	case <-u.done:
		return ErrClosed
	default:
	}
	select {
	case u.inbox <- op:
		return nil
	case <-u.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the event loop and waits for its result.
func call[T any](ctx context.Context, u *StreamUsecase, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	var zero T
	reply := make(chan result, 1)
	err := u.submit(ctx, func(loopCtx context.Context) {
		v, err := fn(loopCtx)
		reply <- result{v: v, err: err}
	})
	if err != nil {
		return zero, err
	}
	select {
	case r := <-reply:
		return r.v, r.err
	case <-u.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Attach registers a connection in the Anonymous state.
func (u *StreamUsecase) Attach(ctx context.Context, conn Conn) error {
	return u.submit(ctx, func(context.Context) { u.attach(conn) })
}

// Dispatch queues an inbound event. Events from all connections are handled
// in the order they are queued.
func (u *StreamUsecase) Dispatch(ctx context.Context, connID string, req domain.StreamRequest) error {
	return u.submit(ctx, func(loopCtx context.Context) { u.handle(loopCtx, connID, req) })
}

// Detach handles a transport close: the session leaves and its typing flag is cleared.
func (u *StreamUsecase) Detach(ctx context.Context, connID string) error {
	return u.submit(ctx, func(context.Context) { u.detach(connID) })
}

// Messages answers a history query for one room.
func (u *StreamUsecase) Messages(ctx context.Context, room string, q domain.MessageQuery) ([]domain.Message, error) {
	if room == "" {
		return nil, fmt.Errorf("%w: room is required", domain.ErrInvalidRequest)
	}
	return call(ctx, u, func(ctx context.Context) ([]domain.Message, error) {
		return u.store.Query(ctx, room, q)
	})
}

// RecentMessages returns the newest messages across all rooms.
func (u *StreamUsecase) RecentMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	return call(ctx, u, func(ctx context.Context) ([]domain.Message, error) {
		return u.store.Recent(ctx, limit)
	})
}

// Sessions lists every joined session regardless of room.
func (u *StreamUsecase) Sessions(ctx context.Context) ([]domain.Session, error) {
	return call(ctx, u, func(context.Context) ([]domain.Session, error) {
		return u.registry.List(), nil
	})
}

func (u *StreamUsecase) Stats(ctx context.Context) (domain.StreamStats, error) {
	return call(ctx, u, func(context.Context) (domain.StreamStats, error) {
		return domain.StreamStats{
			Connections: len(u.conns),
			Sessions:    u.registry.Len(),
			Rooms:       u.registry.RoomCounts(),
			Uptime:      u.now().Sub(u.startTime).Round(time.Second).String(),
		}, nil
	})
}
