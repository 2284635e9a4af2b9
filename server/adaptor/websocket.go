package adaptor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ponyo877/roomcast/pb"
	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/usecase"
)

type WebSocketHandler struct {
	uc       Usecase
	logger   *slog.Logger
	opts     TransportOptions
	upgrader websocket.Upgrader
}

// NewWebSocketHandler accepts upgrades from allowedOrigins. An empty list
// allows every origin; requests without an Origin header are always allowed.
func NewWebSocketHandler(uc Usecase, logger *slog.Logger, allowedOrigins []string, opts TransportOptions) *WebSocketHandler {
	return &WebSocketHandler{
		uc:     uc,
		logger: logger.With(slog.String("component", "websocket")),
		opts:   opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(allowed) == 0 || slices.Contains(allowed, origin)
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Upgrade failed", slog.String("remote", r.RemoteAddr), slog.Any("error", err))
		return
	}
	conn := newStreamConn(r.RemoteAddr, h.opts.SendBuffer)
	logger := h.logger.With(slog.String("connID", conn.ID()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.uc.Attach(ctx, conn); err != nil {
		logger.Warn("Rejecting connection", slog.Any("error", err))
		ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server unavailable"), time.Now().Add(h.opts.WriteTimeout))
		ws.Close()
		return
	}
	logger.Info("Client connected", slog.String("remote", r.RemoteAddr))

	go h.writePump(ws, conn, logger)
	h.readPump(ctx, ws, conn, logger)
}

func (h *WebSocketHandler) readPump(ctx context.Context, ws *websocket.Conn, conn *streamConn, logger *slog.Logger) {
	defer func() {
		conn.Close(errPeerClosed)
		detach(h.uc, logger, conn.ID())
		logger.Info("Client disconnected")
	}()

	ws.SetReadLimit(pb.MaxFrameSize)
	ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Debug("Read failed", slog.Any("error", err))
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))

		req, err := DecodeRequest(data)
		if err != nil {
			logger.Debug("Dropping undecodable frame", slog.Any("error", err))
			conn.Deliver(domain.NewErrorEvent(ackIDOf(data), err))
			continue
		}
		if err := h.uc.Dispatch(ctx, conn.ID(), req); err != nil {
			logger.Debug("Dispatch failed", slog.Any("error", err))
			return
		}
	}
}

func (h *WebSocketHandler) writePump(ws *websocket.Conn, conn *streamConn, logger *slog.Logger) {
	ticker := time.NewTicker(h.opts.ReadTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case ev := <-conn.send:
			data, err := EncodeEvent(ev)
			if err != nil {
				logger.Error("Failed to encode event", slog.Any("error", err))
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("Write failed", slog.Any("error", err))
				conn.Close(err)
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close(err)
				return
			}
		case <-conn.Done():
			reason := conn.Err()
			if errors.Is(reason, errPeerClosed) {
				return
			}
			code := websocket.CloseGoingAway
			if errors.Is(reason, usecase.ErrSlowConsumer) {
				code = websocket.ClosePolicyViolation
			}
			msg := ""
			if reason != nil {
				msg = reason.Error()
			}
			ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, msg), time.Now().Add(h.opts.WriteTimeout))
			return
		}
	}
}
