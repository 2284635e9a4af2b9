package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMessage_SetReactionReplaces(t *testing.T) {
	m := NewMessage("general", "c1", "alice", "hi", "")
	m.SetReaction("u1", "🔥")
	m.SetReaction("u1", "👍")
	m.SetReaction("u2", "🔥")

	if len(m.Reactions) != 2 {
		t.Fatalf("Reactions = %v, want one entry per user", m.Reactions)
	}
	if m.Reactions["u1"] != "👍" {
		t.Errorf("Reactions[u1] = %q, want 👍", m.Reactions["u1"])
	}
}

func TestMessage_MarkRead(t *testing.T) {
	m := NewMessage("general", "c1", "alice", "hi", "")
	if !m.MarkRead("c2") {
		t.Error("first MarkRead should report a new reader")
	}
	if m.MarkRead("c2") {
		t.Error("second MarkRead should be a no-op")
	}
	if len(m.ReadBy) != 1 {
		t.Errorf("ReadBy = %v", m.ReadBy)
	}
}

func TestMessage_CloneIsDeep(t *testing.T) {
	m := NewMessage("general", "c1", "alice", "hi", "")
	m.SetReaction("u1", "🔥")
	m.MarkRead("c2")

	c := m.Clone()
	m.SetReaction("u1", "👍")
	m.MarkRead("c3")

	if c.Reactions["u1"] != "🔥" || len(c.ReadBy) != 1 {
		t.Errorf("clone changed with the original: %+v", c)
	}
}

func TestMessage_Validate(t *testing.T) {
	if err := NewMessage("r", "c", "n", "", "").Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty message Validate() = %v, want ErrInvalidRequest", err)
	}
	if err := NewMessage("r", "c", "n", "", "data:image/png;base64,AAAA").Validate(); err != nil {
		t.Errorf("image-only message Validate() = %v", err)
	}
}

func TestMessageQuery_Apply(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: 1, SenderName: "alice", Body: "hello ABC", Timestamp: base},
		{ID: 2, SenderName: "bob", Body: "nothing", Timestamp: base.Add(time.Second)},
		{ID: 3, SenderName: "abcdef", Body: "from the name", Timestamp: base.Add(2 * time.Second)},
		{ID: 4, SenderName: "carol", Body: "more abc", Timestamp: base.Add(3 * time.Second)},
	}

	tests := []struct {
		name  string
		query MessageQuery
		want  []int64
	}{
		{"limit keeps newest", MessageQuery{Limit: 2}, []int64{3, 4}},
		{"search body or sender", MessageQuery{Search: "abc", Limit: 20}, []int64{1, 3, 4}},
		{"before is strict", MessageQuery{Before: base.Add(2 * time.Second), Limit: 20}, []int64{1, 2}},
		{"search then before then limit", MessageQuery{Search: "ABC", Before: base.Add(3 * time.Second), Limit: 1}, []int64{3}},
		{"non-positive limit", MessageQuery{Limit: 0}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.query.Apply(msgs)
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() returned %d messages, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("Apply()[%d].ID = %d, want %d", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestStreamRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     StreamRequest
		wantErr bool
	}{
		{"join", NewJoinRequest("alice", "general"), false},
		{"join without room", NewJoinRequest("alice", "  "), true},
		{"join without name", NewJoinRequest("", "general"), true},
		{"join with long name", NewJoinRequest(strings.Repeat("a", MaxNameLength+1), "general"), true},
		{"join with long room", NewJoinRequest("alice", strings.Repeat("r", MaxNameLength+1)), true},
		{"join at name limit", NewJoinRequest(strings.Repeat("a", MaxNameLength), "general"), false},
		{"send text", NewSendRequest(1, "hi", ""), false},
		{"send image", NewSendRequest(1, "", "data:image/png;base64,AA"), false},
		{"send empty", NewSendRequest(1, "", ""), true},
		{"private", NewPrivateSendRequest("c2", "psst"), false},
		{"private without target", NewPrivateSendRequest("", "psst"), true},
		{"typing", NewTypingRequest(false), false},
		{"reaction", NewReactionRequest(5, "👍"), false},
		{"reaction without emoji", NewReactionRequest(5, ""), true},
		{"read", NewReadRequest(5), false},
		{"read without id", NewReadRequest(0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %t", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Validate() error %v does not wrap ErrInvalidRequest", err)
			}
		})
	}
}

func TestParseRequestType(t *testing.T) {
	for _, typ := range []StreamRequestType{RequestJoin, RequestSend, RequestPrivateSend, RequestTyping, RequestReaction, RequestRead} {
		got, ok := ParseRequestType(typ.String())
		if !ok || got != typ {
			t.Errorf("ParseRequestType(%q) = %v, %t", typ.String(), got, ok)
		}
	}
	if _, ok := ParseRequestType("nope"); ok {
		t.Error("ParseRequestType(nope) should fail")
	}
}
