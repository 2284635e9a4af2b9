package adaptor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/usecase"
)

const detachTimeout = 5 * time.Second

var errPeerClosed = errors.New("peer closed the connection")

type TransportOptions struct {
	SendBuffer   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		SendBuffer:   256,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func (o TransportOptions) withDefaults() TransportOptions {
	d := DefaultTransportOptions()
	if o.SendBuffer < 1 {
		o.SendBuffer = d.SendBuffer
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	return o
}

// streamConn is the hub-facing half of a client connection. The hub queues
// events on send and the transport's writer drains them.
type streamConn struct {
	id     string
	remote string
	send   chan domain.StreamEvent
	done   chan struct{}

	once   sync.Once
	mu     sync.Mutex
	reason error
}

func newStreamConn(remote string, buffer int) *streamConn {
	if buffer < 1 {
		buffer = DefaultTransportOptions().SendBuffer
	}
	return &streamConn{
		id:     domain.NewConnectionID(),
		remote: remote,
		send:   make(chan domain.StreamEvent, buffer),
		done:   make(chan struct{}),
	}
}

func (c *streamConn) ID() string     { return c.id }
func (c *streamConn) Remote() string { return c.remote }

func (c *streamConn) Deliver(ev domain.StreamEvent) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *streamConn) Close(reason error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *streamConn) Done() <-chan struct{} {
	return c.done
}

func (c *streamConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// detach tells the hub the connection is gone. The request context is
// usually cancelled by now, so it runs on its own deadline.
func detach(uc Usecase, logger *slog.Logger, connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), detachTimeout)
	defer cancel()
	if err := uc.Detach(ctx, connID); err != nil && !errors.Is(err, usecase.ErrClosed) {
		logger.Warn("Failed to detach connection", slog.Any("error", err))
	}
}
