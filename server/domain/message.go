package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Message struct {
	ID          int64             `json:"id"`
	Room        string            `json:"room"`
	SenderID    string            `json:"senderId"`
	SenderName  string            `json:"sender"`
	Body        string            `json:"message"`
	Image       string            `json:"image,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	IsPrivate   bool              `json:"isPrivate,omitempty"`
	RecipientID string            `json:"recipientId,omitempty"`
	Reactions   map[string]string `json:"reactions,omitempty"`
	ReadBy      []string          `json:"readBy,omitempty"`
}

// NewMessage builds a room message. SenderName is a snapshot and does not
// follow later renames of the sender.
func NewMessage(room, senderID, senderName, body, image string) Message {
	return Message{
		Room:       room,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		Image:      image,
	}
}

func NewPrivateMessage(id int64, at time.Time, sender Session, recipientID, body string) Message {
	return Message{
		ID:          id,
		Room:        sender.Room,
		SenderID:    sender.ID,
		SenderName:  sender.Username,
		Body:        body,
		Timestamp:   at,
		IsPrivate:   true,
		RecipientID: recipientID,
	}
}

func (m Message) Validate() error {
	if m.Body == "" && m.Image == "" {
		return fmt.Errorf("%w: message needs text or an image", ErrInvalidRequest)
	}
	return nil
}

// SetReaction records userID's reaction, replacing any earlier one.
func (m *Message) SetReaction(userID, emoji string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string]string)
	}
	m.Reactions[userID] = emoji
}

// MarkRead adds readerID to ReadBy and reports whether it was new.
func (m *Message) MarkRead(readerID string) bool {
	if slices.Contains(m.ReadBy, readerID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, readerID)
	return true
}

// Matches reports whether text occurs in the body or the sender name, ignoring case.
func (m Message) Matches(text string) bool {
	if text == "" {
		return true
	}
	q := strings.ToLower(text)
	return strings.Contains(strings.ToLower(m.Body), q) ||
		strings.Contains(strings.ToLower(m.SenderName), q)
}

// Clone returns a deep copy so the snapshot can leave the hub goroutine.
func (m Message) Clone() Message {
	if m.Reactions != nil {
		reactions := make(map[string]string, len(m.Reactions))
		for k, v := range m.Reactions {
			reactions[k] = v
		}
		m.Reactions = reactions
	}
	m.ReadBy = slices.Clone(m.ReadBy)
	return m
}

func (m Message) String() string {
	if m.IsPrivate {
		return fmt.Sprintf("#%d %s -> %s: %s", m.ID, m.SenderName, m.RecipientID, m.Body)
	}
	return fmt.Sprintf("#%d [%s] %s: %s", m.ID, m.Room, m.SenderName, m.Body)
}
