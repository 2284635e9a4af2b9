package domain

// Wire payloads carried by outbound events.

type UserPresence struct {
	Username string `json:"username"`
	ID       string `json:"id"`
	Room     string `json:"room,omitempty"`
}

type NoticeKind string

const (
	NoticeJoin  NoticeKind = "join"
	NoticeLeave NoticeKind = "leave"
)

type UserNotification struct {
	Message string     `json:"message"`
	Type    NoticeKind `json:"type"`
}

type MessageAck struct {
	ID int64 `json:"id"`
}

type ReadUpdate struct {
	MessageID int64  `json:"messageId"`
	ReaderID  string `json:"readerId"`
}

type ReactionUpdate struct {
	MessageID int64  `json:"messageId"`
	Reaction  string `json:"reaction"`
	UserID    string `json:"userId"`
}

type ErrorNotice struct {
	Error string `json:"error"`
}
