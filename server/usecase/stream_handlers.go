package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ponyo877/roomcast/server/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (u *StreamUsecase) attach(conn Conn) {
	u.conns[conn.ID()] = conn
	u.metrics.Connections.Set(float64(len(u.conns)))
	u.logger.Debug("Connection attached", slog.String("connID", conn.ID()), slog.String("remote", conn.Remote()))
}

func (u *StreamUsecase) detach(connID string) {
	if _, ok := u.conns[connID]; !ok {
		return
	}
	delete(u.conns, connID)
	u.metrics.Connections.Set(float64(len(u.conns)))

	session, ok := u.registry.Get(connID)
	if !ok {
		u.typing.SetTyping(connID, false)
		u.logger.Debug("Anonymous connection detached", slog.String("connID", connID))
		return
	}
	u.leaveRoom(session)
	u.logger.Info("User left the chat", slog.String("connID", connID), slog.String("username", session.Username), slog.String("room", session.Room))
}

func (u *StreamUsecase) handle(ctx context.Context, connID string, req domain.StreamRequest) {
	start := time.Now()
	defer func() { u.metrics.HandleDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := u.tracer.Start(ctx, "hub."+req.Type.String(), trace.WithAttributes(
		attribute.String("conn.id", connID),
	))
	defer span.End()
	u.metrics.Events.WithLabelValues(req.Type.String()).Inc()

	conn, ok := u.conns[connID]
	if !ok {
		u.ignore(span, "unknown_connection", connID, req)
		return
	}
	if req.Type == domain.RequestJoin {
		if err := req.Validate(); err != nil {
			u.reject(span, conn, req, err)
			return
		}
		u.handleJoin(conn, req)
		return
	}

	session, err := u.registry.Require(connID)
	if err != nil {
		span.RecordError(err)
		u.ignore(span, "not_joined", connID, req)
		return
	}
	span.SetAttributes(attribute.String("room", session.Room))
	if err := req.Validate(); err != nil {
		u.reject(span, conn, req, err)
		return
	}

	switch req.Type {
	case domain.RequestSend:
		u.handleSend(ctx, span, conn, session, req)
	case domain.RequestPrivateSend:
		u.handlePrivateSend(span, conn, session, req)
	case domain.RequestTyping:
		u.handleTyping(conn, session, req)
	case domain.RequestReaction:
		u.handleReaction(ctx, span, session, req)
	case domain.RequestRead:
		u.handleRead(ctx, span, session, req)
	}
}

func (u *StreamUsecase) handleJoin(conn Conn, req domain.StreamRequest) {
	if prev, ok := u.registry.Get(conn.ID()); ok {
		u.leaveRoom(prev)
	}
	session := u.registry.Join(domain.NewSession(conn.ID(), req.Username, req.Room, conn.Remote(), u.now()))
	u.metrics.Sessions.Set(float64(u.registry.Len()))

	u.toRoom(session.Room, domain.NewUserListEvent(u.registry.ListByRoom(session.Room)))
	u.toRoom(session.Room, domain.NewUserJoinedEvent(session))
	u.toRoom(session.Room, domain.NewJoinNoticeEvent(session))
	u.logger.Info("User joined room", slog.String("connID", session.ID), slog.String("username", session.Username), slog.String("room", session.Room))
}

// leaveRoom removes the session, clears its typing flag and tells the room.
func (u *StreamUsecase) leaveRoom(s domain.Session) {
	u.registry.Leave(s.ID)
	u.typing.SetTyping(s.ID, false)
	u.metrics.Sessions.Set(float64(u.registry.Len()))

	u.toRoom(s.Room, domain.NewUserLeftEvent(s))
	u.toRoom(s.Room, domain.NewLeaveNoticeEvent(s))
	u.toRoom(s.Room, domain.NewUserListEvent(u.registry.ListByRoom(s.Room)))
	u.broadcastTyping(s.Room)
}

func (u *StreamUsecase) handleSend(ctx context.Context, span trace.Span, conn Conn, s domain.Session, req domain.StreamRequest) {
	stored, err := u.store.Append(ctx, domain.NewMessage(s.Room, s.ID, s.Username, req.Body, req.Image))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		u.logger.Error("Failed to store message", slog.String("connID", s.ID), slog.String("room", s.Room), slog.Any("error", err))
		u.deliver(conn, domain.NewErrorEvent(req.AckID, err))
		return
	}
	u.metrics.Stored.Inc()
	span.SetAttributes(attribute.Int64("message.id", stored.ID))

	u.toRoom(s.Room, domain.NewMessageEvent(stored))
	u.deliver(conn, domain.NewMessageAckEvent(req.AckID, stored.ID))
}

func (u *StreamUsecase) handlePrivateSend(span trace.Span, conn Conn, s domain.Session, req domain.StreamRequest) {
	id, at := u.ids.Next()
	ev := domain.NewPrivateMessageEvent(domain.NewPrivateMessage(id, at, s, req.To, req.Body))

	if req.To != conn.ID() {
		if target, ok := u.conns[req.To]; ok {
			u.deliver(target, ev)
		} else {
			u.ignore(span, "unknown_recipient", s.ID, req)
		}
	}
	// The sender's copy doubles as the acknowledgement.
	ev.AckID = req.AckID
	u.deliver(conn, ev)
}

func (u *StreamUsecase) handleTyping(conn Conn, s domain.Session, req domain.StreamRequest) {
	u.typing.SetTyping(conn.ID(), req.IsTyping)
	u.broadcastTyping(s.Room)
}

func (u *StreamUsecase) handleReaction(ctx context.Context, span trace.Span, s domain.Session, req domain.StreamRequest) {
	err := u.store.RecordReaction(ctx, s.Room, req.MessageID, s.ID, req.Reaction)
	if errors.Is(err, domain.ErrNotFound) {
		u.ignore(span, "unknown_message", s.ID, req)
		return
	}
	if err != nil {
		span.RecordError(err)
		u.logger.Error("Failed to record reaction", slog.String("connID", s.ID), slog.Int64("messageID", req.MessageID), slog.Any("error", err))
		return
	}
	u.toRoom(s.Room, domain.NewReactionUpdateEvent(req.MessageID, req.Reaction, s.ID))
}

func (u *StreamUsecase) handleRead(ctx context.Context, span trace.Span, s domain.Session, req domain.StreamRequest) {
	msg, err := u.store.Get(ctx, s.Room, req.MessageID)
	if errors.Is(err, domain.ErrNotFound) {
		u.ignore(span, "unknown_message", s.ID, req)
		return
	}
	if err != nil {
		span.RecordError(err)
		u.logger.Error("Failed to look up message", slog.String("connID", s.ID), slog.Int64("messageID", req.MessageID), slog.Any("error", err))
		return
	}
	if msg.SenderID == s.ID {
		u.ignore(span, "own_message", s.ID, req)
		return
	}
	if err := u.store.RecordRead(ctx, s.Room, req.MessageID, s.ID); err != nil {
		span.RecordError(err)
		u.logger.Error("Failed to record read receipt", slog.String("connID", s.ID), slog.Int64("messageID", req.MessageID), slog.Any("error", err))
		return
	}

	ev := domain.NewReadUpdateEvent(req.MessageID, s.ID)
	if u.policy.ReadScope == domain.ScopeGlobal {
		u.toAll(ev)
		return
	}
	u.toRoom(s.Room, ev)
}

func (u *StreamUsecase) broadcastTyping(room string) {
	if u.policy.TypingScope == domain.ScopeGlobal {
		u.toAll(domain.NewTypingUsersEvent(u.typing.AllTyping()))
		return
	}
	u.toRoom(room, domain.NewTypingUsersEvent(u.typing.TypingList(room)))
}

func (u *StreamUsecase) ignore(span trace.Span, reason, connID string, req domain.StreamRequest) {
	span.SetAttributes(attribute.String("ignored", reason))
	u.metrics.Ignored.WithLabelValues(reason).Inc()
	u.logger.Debug("Ignoring event", slog.String("reason", reason), slog.String("connID", connID), slog.String("event", req.String()))
}

func (u *StreamUsecase) reject(span trace.Span, conn Conn, req domain.StreamRequest, err error) {
	span.SetAttributes(attribute.String("rejected", err.Error()))
	u.metrics.Ignored.WithLabelValues("invalid").Inc()
	u.logger.Debug("Rejecting invalid event", slog.String("connID", conn.ID()), slog.Any("error", err))
	u.deliver(conn, domain.NewErrorEvent(req.AckID, err))
}

func (u *StreamUsecase) toRoom(room string, ev domain.StreamEvent) {
	for _, s := range u.registry.ListByRoom(room) {
		if conn, ok := u.conns[s.ID]; ok {
			u.deliver(conn, ev)
		}
	}
}

func (u *StreamUsecase) toAll(ev domain.StreamEvent) {
	for _, conn := range u.conns {
		u.deliver(conn, ev)
	}
}

func (u *StreamUsecase) deliver(conn Conn, ev domain.StreamEvent) {
	if conn.Deliver(ev) {
		u.metrics.Deliveries.Inc()
		return
	}
	u.metrics.Dropped.Inc()
	u.logger.Warn("Outbound buffer full, closing connection", slog.String("connID", conn.ID()), slog.String("event", ev.Type.String()))
	conn.Close(ErrSlowConsumer)
}
