package domain

import (
	"fmt"
	"strings"
)

type StreamRequestType int

const (
	RequestJoin StreamRequestType = iota
	RequestSend
	RequestPrivateSend
	RequestTyping
	RequestReaction
	RequestRead
)

var requestNames = map[StreamRequestType]string{
	RequestJoin:        "user_join",
	RequestSend:        "send_message",
	RequestPrivateSend: "private_message",
	RequestTyping:      "typing",
	RequestReaction:    "message:reaction",
	RequestRead:        "message:read",
}

// String returns the wire name of the inbound event.
func (t StreamRequestType) String() string {
	if name, ok := requestNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseRequestType maps a wire event name back to its type.
func ParseRequestType(name string) (StreamRequestType, bool) {
	for t, n := range requestNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// MaxNameLength caps usernames and room names in bytes. Both are repeated in
// every message event, so they must stay small next to the frame limit.
const MaxNameLength = 128

// StreamRequest is one inbound client action. AckID is chosen by the client
// and echoed on the reply to this request.
type StreamRequest struct {
	Type      StreamRequestType
	AckID     uint64
	Username  string
	Room      string
	Body      string
	Image     string
	To        string
	IsTyping  bool
	MessageID int64
	Reaction  string
}

func NewJoinRequest(username, room string) StreamRequest {
	return StreamRequest{
		Type:     RequestJoin,
		Username: strings.TrimSpace(username),
		Room:     strings.TrimSpace(room),
	}
}

func NewSendRequest(ackID uint64, body, image string) StreamRequest {
	return StreamRequest{
		Type:  RequestSend,
		AckID: ackID,
		Body:  body,
		Image: image,
	}
}

func NewPrivateSendRequest(to, body string) StreamRequest {
	return StreamRequest{
		Type: RequestPrivateSend,
		To:   to,
		Body: body,
	}
}

func NewTypingRequest(isTyping bool) StreamRequest {
	return StreamRequest{
		Type:     RequestTyping,
		IsTyping: isTyping,
	}
}

func NewReactionRequest(messageID int64, reaction string) StreamRequest {
	return StreamRequest{
		Type:      RequestReaction,
		MessageID: messageID,
		Reaction:  reaction,
	}
}

func NewReadRequest(messageID int64) StreamRequest {
	return StreamRequest{
		Type:      RequestRead,
		MessageID: messageID,
	}
}

// Validate checks required fields. Failures wrap ErrInvalidRequest.
func (r StreamRequest) Validate() error {
	var reason string
	switch r.Type {
	case RequestJoin:
		switch {
		case r.Username == "":
			reason = "username is required"
		case r.Room == "":
			reason = "room is required"
		case len(r.Username) > MaxNameLength:
			reason = fmt.Sprintf("username is longer than %d bytes", MaxNameLength)
		case len(r.Room) > MaxNameLength:
			reason = fmt.Sprintf("room is longer than %d bytes", MaxNameLength)
		}
	case RequestSend:
		if r.Body == "" && r.Image == "" {
			reason = "message needs text or an image"
		}
	case RequestPrivateSend:
		switch {
		case r.To == "":
			reason = "recipient is required"
		case r.Body == "":
			reason = "message is required"
		}
	case RequestTyping:
	case RequestReaction:
		switch {
		case r.MessageID == 0:
			reason = "messageId is required"
		case r.Reaction == "":
			reason = "reaction is required"
		}
	case RequestRead:
		if r.MessageID == 0 {
			reason = "messageId is required"
		}
	default:
		reason = "unknown request type"
	}
	if reason != "" {
		return fmt.Errorf("%w: %s: %s", ErrInvalidRequest, r.Type, reason)
	}
	return nil
}

func (r StreamRequest) String() string {
	switch r.Type {
	case RequestJoin:
		return r.Type.String() + ": " + r.Username + " -> " + r.Room
	case RequestSend:
		return r.Type.String() + ": " + r.Body
	case RequestPrivateSend:
		return r.Type.String() + ": -> " + r.To
	case RequestReaction:
		return fmt.Sprintf("%s: %d %s", r.Type, r.MessageID, r.Reaction)
	case RequestRead:
		return fmt.Sprintf("%s: %d", r.Type, r.MessageID)
	case RequestTyping:
		return fmt.Sprintf("%s: %t", r.Type, r.IsTyping)
	default:
		return r.Type.String()
	}
}
