package domain

import "fmt"

type StreamEventType int

const (
	EventUserList StreamEventType = iota
	EventUserJoined
	EventUserLeft
	EventUserNotification
	EventReceiveMessage
	EventMessageAck
	EventReadUpdate
	EventTypingUsers
	EventPrivateMessage
	EventReactionUpdate
	EventError
)

var eventNames = map[StreamEventType]string{
	EventUserList:         "user_list",
	EventUserJoined:       "user_joined",
	EventUserLeft:         "user_left",
	EventUserNotification: "userNotification",
	EventReceiveMessage:   "receive_message",
	EventMessageAck:       "message:ack",
	EventReadUpdate:       "message:read:update",
	EventTypingUsers:      "typing_users",
	EventPrivateMessage:   "private_message",
	EventReactionUpdate:   "message:reaction:update",
	EventError:            "error",
}

// String returns the wire name of the outbound event.
func (t StreamEventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// StreamEvent is one outbound event. Payloads are snapshots and safe to
// encode on another goroutine.
type StreamEvent struct {
	Type    StreamEventType
	AckID   uint64
	Payload any
}

func NewUserListEvent(members []Session) StreamEvent {
	return StreamEvent{Type: EventUserList, Payload: members}
}

func NewUserJoinedEvent(s Session) StreamEvent {
	return StreamEvent{
		Type:    EventUserJoined,
		Payload: UserPresence{Username: s.Username, ID: s.ID, Room: s.Room},
	}
}

func NewUserLeftEvent(s Session) StreamEvent {
	return StreamEvent{
		Type:    EventUserLeft,
		Payload: UserPresence{Username: s.Username, ID: s.ID},
	}
}

func NewJoinNoticeEvent(s Session) StreamEvent {
	return StreamEvent{
		Type:    EventUserNotification,
		Payload: UserNotification{Message: s.Username + " joined the chat", Type: NoticeJoin},
	}
}

func NewLeaveNoticeEvent(s Session) StreamEvent {
	return StreamEvent{
		Type:    EventUserNotification,
		Payload: UserNotification{Message: s.Username + " left the chat", Type: NoticeLeave},
	}
}

func NewMessageEvent(m Message) StreamEvent {
	return StreamEvent{Type: EventReceiveMessage, Payload: m.Clone()}
}

func NewMessageAckEvent(ackID uint64, messageID int64) StreamEvent {
	return StreamEvent{Type: EventMessageAck, AckID: ackID, Payload: MessageAck{ID: messageID}}
}

func NewReadUpdateEvent(messageID int64, readerID string) StreamEvent {
	return StreamEvent{Type: EventReadUpdate, Payload: ReadUpdate{MessageID: messageID, ReaderID: readerID}}
}

func NewTypingUsersEvent(usernames []string) StreamEvent {
	return StreamEvent{Type: EventTypingUsers, Payload: usernames}
}

func NewPrivateMessageEvent(m Message) StreamEvent {
	return StreamEvent{Type: EventPrivateMessage, Payload: m.Clone()}
}

func NewReactionUpdateEvent(messageID int64, reaction, userID string) StreamEvent {
	return StreamEvent{
		Type:    EventReactionUpdate,
		Payload: ReactionUpdate{MessageID: messageID, Reaction: reaction, UserID: userID},
	}
}

func NewErrorEvent(ackID uint64, err error) StreamEvent {
	return StreamEvent{Type: EventError, AckID: ackID, Payload: ErrorNotice{Error: err.Error()}}
}

func (e StreamEvent) String() string {
	return fmt.Sprintf("%s: %v", e.Type, e.Payload)
}
