/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ponyo877/roomcast/pb"
	"github.com/tidwall/gjson"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type frame struct {
	Event   string `json:"event"`
	AckID   uint64 `json:"ackId,omitempty"`
	Payload any    `json:"payload"`
}

// chatSession is one joined connection. Send methods are not safe for
// concurrent use, and recv must be called from a single goroutine.
type chatSession struct {
	stream grpc.BidiStreamingClient[structpb.Struct, structpb.Struct]
	ackID  uint64
	// id is the server-assigned connection id, learned from the first
	// user_joined event. Usernames are not unique, so it is what tells this
	// session's messages apart.
	id string
}

func openSession(ctx context.Context, name, room string) (*chatSession, error) {
	stream, err := roomcastClient.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	s := &chatSession{stream: stream}
	if _, err := s.send("user_join", map[string]string{"username": name, "room": room}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *chatSession) send(event string, payload any) (uint64, error) {
	s.ackID++
	data, err := json.Marshal(frame{Event: event, AckID: s.ackID, Payload: payload})
	if err != nil {
		return 0, err
	}
	st, err := pb.ToStruct(data)
	if err != nil {
		return 0, err
	}
	if err := s.stream.Send(st); err != nil {
		return 0, fmt.Errorf("failed to send %s: %w", event, err)
	}
	return s.ackID, nil
}

func (s *chatSession) say(body string) (uint64, error) {
	return s.send("send_message", map[string]string{"message": body})
}

func (s *chatSession) whisper(to, body string) (uint64, error) {
	return s.send("private_message", map[string]string{"to": to, "message": body})
}

func (s *chatSession) typing(on bool) error {
	_, err := s.send("typing", map[string]bool{"isTyping": on})
	return err
}

func (s *chatSession) react(messageID int64, reaction string) error {
	_, err := s.send("message:reaction", map[string]any{"messageId": messageID, "reaction": reaction})
	return err
}

func (s *chatSession) markRead(messageID int64) error {
	_, err := s.send("message:read", map[string]int64{"messageId": messageID})
	return err
}

// recv blocks for the next event and returns its name with the whole frame.
func (s *chatSession) recv() (string, gjson.Result, error) {
	in, err := s.stream.Recv()
	if err != nil {
		return "", gjson.Result{}, err
	}
	data, err := pb.ToJSON(in)
	if err != nil {
		return "", gjson.Result{}, err
	}
	f := gjson.ParseBytes(data)
	event := f.Get("event").String()
	// Joins announced before ours never reach this connection, so the first
	// user_joined is our own.
	if event == "user_joined" && s.id == "" {
		s.id = f.Get("payload.id").String()
	}
	return event, f, nil
}

// isOwn reports whether the message payload was sent by this session.
func (s *chatSession) isOwn(m gjson.Result) bool {
	return s.id != "" && m.Get("senderId").String() == s.id
}

// awaitAck reads events until the reply for ackID arrives. Server error
// events carrying ackID are returned as errors.
func (s *chatSession) awaitAck(ackID uint64, events ...string) (gjson.Result, error) {
	for {
		event, f, err := s.recv()
		if err != nil {
			return gjson.Result{}, err
		}
		if f.Get("ackId").Uint() != ackID {
			continue
		}
		if event == "error" {
			return gjson.Result{}, errors.New(f.Get("payload.error").String())
		}
		for _, want := range events {
			if event == want {
				return f.Get("payload"), nil
			}
		}
	}
}

func (s *chatSession) close() error {
	return s.stream.CloseSend()
}

// formatMessage renders one message payload as a single line.
func formatMessage(m gjson.Result) string {
	var b strings.Builder
	if ts, err := time.Parse(time.RFC3339Nano, m.Get("timestamp").String()); err == nil {
		b.WriteString(ts.Local().Format("15:04:05 "))
	}
	fmt.Fprintf(&b, "#%d ", m.Get("id").Int())
	if m.Get("isPrivate").Bool() {
		b.WriteString("(private) ")
	}
	b.WriteString(m.Get("sender").String())
	b.WriteString(": ")
	b.WriteString(m.Get("message").String())
	if img := m.Get("image").String(); img != "" {
		b.WriteString(" [image]")
	}
	if reactions := m.Get("reactions"); reactions.Exists() {
		var rs []string
		reactions.ForEach(func(_, v gjson.Result) bool {
			rs = append(rs, v.String())
			return true
		})
		if len(rs) > 0 {
			b.WriteString(" ")
			b.WriteString(strings.Join(rs, ""))
		}
	}
	if n := len(m.Get("readBy").Array()); n > 0 {
		fmt.Fprintf(&b, " (read by %d)", n)
	}
	return b.String()
}

// fetchMessages calls ListMessages with the given query fields.
func fetchMessages(ctx context.Context, query map[string]any) ([]gjson.Result, error) {
	in, err := structpb.NewStruct(query)
	if err != nil {
		return nil, err
	}
	res, err := roomcastClient.ListMessages(ctx, in)
	if err != nil {
		return nil, err
	}
	data, err := pb.ListToJSON(res)
	if err != nil {
		return nil, err
	}
	return gjson.ParseBytes(data).Array(), nil
}
