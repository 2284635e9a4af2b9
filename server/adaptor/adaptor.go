package adaptor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/ponyo877/roomcast/pb"
	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/usecase"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Adaptor serves the ChatService over gRPC.
type Adaptor struct {
	uc     Usecase
	logger *slog.Logger
	opts   TransportOptions
	query  QueryOptions
	pb.UnimplementedChatServiceServer
}

// ServerOptions accepts inbound frames up to the size the websocket
// transport accepts.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{grpc.MaxRecvMsgSize(pb.MaxFrameSize)}
}

func NewAdaptor(uc Usecase, logger *slog.Logger, opts TransportOptions, query QueryOptions) *Adaptor {
	return &Adaptor{
		uc:     uc,
		logger: logger.With(slog.String("component", "grpc")),
		opts:   opts.withDefaults(),
		query:  query,
	}
}

func (a *Adaptor) Connect(stream grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error {
	ctx := stream.Context()
	remote := "unknown"
	if p, ok := peer.FromContext(ctx); ok {
		remote = p.Addr.String()
	}
	conn := newStreamConn(remote, a.opts.SendBuffer)
	logger := a.logger.With(slog.String("connID", conn.ID()))

	if err := a.uc.Attach(ctx, conn); err != nil {
		return status.Errorf(codes.Unavailable, "attach: %v", err)
	}
	defer detach(a.uc, logger, conn.ID())
	defer conn.Close(errPeerClosed)
	logger.Info("Client connected", slog.String("remote", remote))

	recvErr := make(chan error, 1)
	go func() {
		for {
			in, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			data, err := pb.ToJSON(in)
			if err != nil {
				recvErr <- status.Errorf(codes.InvalidArgument, "frame: %v", err)
				return
			}
			req, err := DecodeRequest(data)
			if err != nil {
				logger.Debug("Dropping undecodable frame", slog.Any("error", err))
				conn.Deliver(domain.NewErrorEvent(ackIDOf(data), err))
				continue
			}
			if err := a.uc.Dispatch(ctx, conn.ID(), req); err != nil {
				recvErr <- err
				return
			}
		}
	}()

	for {
		select {
		case ev := <-conn.send:
			out, err := encodeStruct(ev)
			if err != nil {
				logger.Error("Failed to encode event", slog.Any("error", err))
				continue
			}
			if err := stream.Send(out); err != nil {
				logger.Debug("Send failed", slog.Any("error", err))
				return err
			}
		case err := <-recvErr:
			if errors.Is(err, io.EOF) {
				logger.Info("Client disconnected normally")
				return nil
			}
			if status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
				logger.Info("Client disconnected")
				return nil
			}
			logger.Info("Client disconnected with error", slog.Any("error", err))
			return err
		case <-conn.Done():
			reason := conn.Err()
			logger.Info("Connection closed by server", slog.Any("reason", reason))
			if errors.Is(reason, usecase.ErrSlowConsumer) {
				return status.Error(codes.ResourceExhausted, reason.Error())
			}
			return status.Error(codes.Unavailable, reason.Error())
		}
	}
}

func encodeStruct(ev domain.StreamEvent) (*structpb.Struct, error) {
	data, err := EncodeEvent(ev)
	if err != nil {
		return nil, err
	}
	return pb.ToStruct(data)
}

func (a *Adaptor) ListMessages(ctx context.Context, in *structpb.Struct) (*structpb.ListValue, error) {
	room, q, err := ParseHistoryQuery(structValues(in), a.query)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	messages, err := a.uc.Messages(ctx, room, q)
	if err != nil {
		a.logger.Error("Error getting past messages", slog.String("room", room), slog.Any("error", err))
		return nil, toStatus(err)
	}
	return toListValue(messages)
}

func (a *Adaptor) ListSessions(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	sessions, err := a.uc.Sessions(ctx)
	if err != nil {
		a.logger.Error("Error listing sessions", slog.Any("error", err))
		return nil, toStatus(err)
	}
	return toListValue(sessions)
}

// structValues flattens the scalar fields of s so gRPC queries share the
// HTTP query parser.
func structValues(s *structpb.Struct) url.Values {
	v := url.Values{}
	for key, field := range s.GetFields() {
		switch kind := field.GetKind().(type) {
		case *structpb.Value_StringValue:
			v.Set(key, kind.StringValue)
		case *structpb.Value_NumberValue:
			v.Set(key, strconv.FormatFloat(kind.NumberValue, 'f', -1, 64))
		}
	}
	return v
}

func toListValue(v any) (*structpb.ListValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	if bytes.Equal(data, []byte("null")) {
		data = []byte("[]")
	}
	list, err := pb.ToListValue(data)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return list, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, usecase.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
