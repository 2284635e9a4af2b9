package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/repository"
	"github.com/ponyo877/roomcast/server/usecase"
)

type fakeConn struct {
	id       string
	capacity int

	mu     sync.Mutex
	events []domain.StreamEvent
	closed error
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) Remote() string { return "test" }

func (c *fakeConn) Deliver(ev domain.StreamEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) >= c.capacity {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

func (c *fakeConn) Close(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed == nil {
		c.closed = reason
	}
}

// take drains the events received so far.
func (c *fakeConn) take() []domain.StreamEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	evs := c.events
	c.events = nil
	return evs
}

func (c *fakeConn) closeReason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	cancel context.CancelFunc
	u      *usecase.StreamUsecase
}

func newHarness(t *testing.T, opts ...usecase.Option) *harness {
	t.Helper()
	ids := domain.NewIDSequence(nil)
	store := repository.NewMemoryStore(ids, repository.DefaultRetention)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	u := usecase.NewStreamUsecase(logger, store, ids, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go u.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-u.Done()
	})
	return &harness{t: t, ctx: ctx, cancel: cancel, u: u}
}

func (h *harness) connect(id string) *fakeConn {
	h.t.Helper()
	c := &fakeConn{id: id, capacity: 256}
	if err := h.u.Attach(h.ctx, c); err != nil {
		h.t.Fatalf("Attach(%s): %v", id, err)
	}
	return c
}

func (h *harness) dispatch(c *fakeConn, req domain.StreamRequest) {
	h.t.Helper()
	if err := h.u.Dispatch(h.ctx, c.id, req); err != nil {
		h.t.Fatalf("Dispatch(%s, %s): %v", c.id, req, err)
	}
}

func (h *harness) detach(c *fakeConn) {
	h.t.Helper()
	if err := h.u.Detach(h.ctx, c.id); err != nil {
		h.t.Fatalf("Detach(%s): %v", c.id, err)
	}
}

// settle waits until everything queued so far has been handled.
func (h *harness) settle() {
	h.t.Helper()
	if _, err := h.u.Stats(h.ctx); err != nil {
		h.t.Fatalf("Stats: %v", err)
	}
}

func (h *harness) join(c *fakeConn, username, room string) {
	h.t.Helper()
	h.dispatch(c, domain.NewJoinRequest(username, room))
}

func eventNames(evs []domain.StreamEvent) []string {
	names := make([]string, len(evs))
	for i, ev := range evs {
		names[i] = ev.Type.String()
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func expectEvents(t *testing.T, c *fakeConn, want ...string) []domain.StreamEvent {
	t.Helper()
	evs := c.take()
	if got := eventNames(evs); !equalStrings(got, want) {
		t.Fatalf("%s received %v, want %v", c.id, got, want)
	}
	return evs
}

func lastMessage(t *testing.T, evs []domain.StreamEvent) domain.Message {
	t.Helper()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == domain.EventReceiveMessage {
			return evs[i].Payload.(domain.Message)
		}
	}
	t.Fatalf("no receive_message in %v", eventNames(evs))
	return domain.Message{}
}

func sessionNames(payload any) []string {
	sessions := payload.([]domain.Session)
	names := make([]string, len(sessions))
	for i, s := range sessions {
		names[i] = s.Username
	}
	return names
}

func TestStreamUsecase_JoinAndSend(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")

	h.join(a, "alice", "general")
	h.settle()
	evs := expectEvents(t, a, "user_list", "user_joined", "userNotification")
	if got := sessionNames(evs[0].Payload); !equalStrings(got, []string{"alice"}) {
		t.Errorf("user_list = %v", got)
	}

	h.join(b, "bob", "general")
	h.settle()
	for _, c := range []*fakeConn{a, b} {
		evs := expectEvents(t, c, "user_list", "user_joined", "userNotification")
		if got := sessionNames(evs[0].Payload); !equalStrings(got, []string{"alice", "bob"}) {
			t.Errorf("%s user_list = %v, want join order", c.id, got)
		}
		notice := evs[2].Payload.(domain.UserNotification)
		if notice.Message != "bob joined the chat" || notice.Type != domain.NoticeJoin {
			t.Errorf("notice = %+v", notice)
		}
	}

	h.dispatch(a, domain.NewSendRequest(7, "hi", ""))
	h.settle()
	evs = expectEvents(t, a, "receive_message", "message:ack")
	msg := evs[0].Payload.(domain.Message)
	ack := evs[1]
	if ack.AckID != 7 || ack.Payload.(domain.MessageAck).ID != msg.ID {
		t.Errorf("ack = %+v, want ackId 7 for message %d", ack, msg.ID)
	}
	evs = expectEvents(t, b, "receive_message")
	if got := evs[0].Payload.(domain.Message); got.Body != "hi" || got.SenderName != "alice" || got.SenderID != "A" {
		t.Errorf("B received %+v", got)
	}

	history, err := h.u.Messages(h.ctx, "general", domain.MessageQuery{Limit: domain.DefaultQueryLimit})
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(history) != 1 || history[0].ID != msg.ID {
		t.Errorf("history = %v", history)
	}
}

func TestStreamUsecase_MessagesArriveInSendOrder(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(a, "alice", "general")
	h.join(b, "bob", "general")
	h.settle()
	a.take()
	b.take()

	for _, body := range []string{"one", "two", "three"} {
		h.dispatch(a, domain.NewSendRequest(0, body, ""))
		h.dispatch(b, domain.NewSendRequest(0, body+"!", ""))
	}
	h.settle()

	var got []string
	var lastID int64
	for _, ev := range b.take() {
		if ev.Type != domain.EventReceiveMessage {
			continue
		}
		m := ev.Payload.(domain.Message)
		if m.ID <= lastID {
			t.Errorf("message %d delivered after %d", m.ID, lastID)
		}
		lastID = m.ID
		got = append(got, m.Body)
	}
	want := []string{"one", "one!", "two", "two!", "three", "three!"}
	if !equalStrings(got, want) {
		t.Errorf("B saw %v, want %v", got, want)
	}
}

func TestStreamUsecase_AnonymousEventsAreIgnored(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(b, "bob", "general")
	h.settle()
	b.take()

	h.dispatch(a, domain.NewSendRequest(1, "hello?", ""))
	h.dispatch(a, domain.NewTypingRequest(true))
	h.dispatch(a, domain.NewReadRequest(42))
	h.settle()

	expectEvents(t, a)
	expectEvents(t, b)
	history, _ := h.u.Messages(h.ctx, "general", domain.MessageQuery{Limit: 20})
	if len(history) != 0 {
		t.Errorf("anonymous send was stored: %v", history)
	}
}

func TestStreamUsecase_InvalidRequestRepliesToOriginOnly(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(b, "bob", "general")
	h.settle()
	b.take()

	h.join(a, "  ", "general")
	h.settle()
	evs := expectEvents(t, a, "error")
	if evs[0].Payload.(domain.ErrorNotice).Error == "" {
		t.Error("error event carries no reason")
	}
	expectEvents(t, b)

	h.join(a, "alice", "general")
	h.settle()
	a.take()
	b.take()
	h.dispatch(a, domain.NewSendRequest(3, "", ""))
	h.settle()
	evs = expectEvents(t, a, "error")
	if evs[0].AckID != 3 {
		t.Errorf("error ackId = %d, want 3", evs[0].AckID)
	}
	expectEvents(t, b)
}

func TestStreamUsecase_DisconnectWhileTyping(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(a, "alice", "general")
	h.join(b, "bob", "general")
	h.dispatch(b, domain.NewTypingRequest(true))
	h.settle()
	evs := a.take()
	last := evs[len(evs)-1]
	if last.Type != domain.EventTypingUsers || !equalStrings(last.Payload.([]string), []string{"bob"}) {
		t.Fatalf("last event for A = %v, want typing_users [bob]", last)
	}

	h.detach(b)
	h.settle()
	evs = expectEvents(t, a, "user_left", "userNotification", "user_list", "typing_users")
	if left := evs[0].Payload.(domain.UserPresence); left.Username != "bob" || left.ID != "B" {
		t.Errorf("user_left = %+v", left)
	}
	if notice := evs[1].Payload.(domain.UserNotification); notice.Message != "bob left the chat" || notice.Type != domain.NoticeLeave {
		t.Errorf("notice = %+v", notice)
	}
	if got := sessionNames(evs[2].Payload); !equalStrings(got, []string{"alice"}) {
		t.Errorf("user_list = %v", got)
	}
	if got := evs[3].Payload.([]string); len(got) != 0 {
		t.Errorf("typing_users = %v, want empty", got)
	}
}

func TestStreamUsecase_PrivateMessages(t *testing.T) {
	h := newHarness(t)
	a, b, c := h.connect("A"), h.connect("B"), h.connect("C")
	h.join(a, "alice", "general")
	h.join(b, "bob", "random")
	h.join(c, "carol", "general")
	h.settle()
	a.take()
	b.take()
	c.take()

	req := domain.NewPrivateSendRequest("B", "psst")
	req.AckID = 4
	h.dispatch(a, req)
	h.settle()
	evs := expectEvents(t, b, "private_message")
	pm := evs[0].Payload.(domain.Message)
	if !pm.IsPrivate || pm.RecipientID != "B" || pm.SenderID != "A" || pm.ID == 0 {
		t.Errorf("private message = %+v", pm)
	}
	if evs[0].AckID != 0 {
		t.Errorf("recipient copy carries ackId %d", evs[0].AckID)
	}
	if echo := expectEvents(t, a, "private_message"); echo[0].AckID != 4 {
		t.Errorf("sender copy ackId = %d, want 4", echo[0].AckID)
	}
	expectEvents(t, c)

	h.dispatch(a, domain.NewPrivateSendRequest("ghost", "anyone?"))
	h.dispatch(a, domain.NewPrivateSendRequest("A", "note to self"))
	h.settle()
	expectEvents(t, a, "private_message", "private_message")
	expectEvents(t, b)
	expectEvents(t, c)

	history, _ := h.u.Messages(h.ctx, "general", domain.MessageQuery{Limit: 20})
	if len(history) != 0 {
		t.Errorf("private messages were stored: %v", history)
	}
}

func TestStreamUsecase_ReactionReplaces(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(a, "alice", "general")
	h.join(b, "bob", "general")
	h.dispatch(a, domain.NewSendRequest(1, "vote", ""))
	h.settle()
	msg := lastMessage(t, a.take())
	b.take()

	h.dispatch(b, domain.NewReactionRequest(msg.ID, "🔥"))
	h.dispatch(b, domain.NewReactionRequest(msg.ID, "👍"))
	h.dispatch(b, domain.NewReactionRequest(msg.ID+1000, "👍"))
	h.settle()
	evs := expectEvents(t, a, "message:reaction:update", "message:reaction:update")
	if got := evs[1].Payload.(domain.ReactionUpdate); got.Reaction != "👍" || got.UserID != "B" || got.MessageID != msg.ID {
		t.Errorf("update = %+v", got)
	}

	history, _ := h.u.Messages(h.ctx, "general", domain.MessageQuery{Limit: 20})
	if r := history[0].Reactions; len(r) != 1 || r["B"] != "👍" {
		t.Errorf("Reactions = %v", r)
	}
}

func TestStreamUsecase_ReadReceipts(t *testing.T) {
	tests := []struct {
		name         string
		scope        domain.Scope
		outsiderSees bool
	}{
		{"room scope", domain.ScopeRoom, false},
		{"global scope", domain.ScopeGlobal, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := domain.DefaultBroadcastPolicy()
			policy.ReadScope = tt.scope
			h := newHarness(t, usecase.WithBroadcastPolicy(policy))
			a, b, c := h.connect("A"), h.connect("B"), h.connect("C")
			h.join(a, "alice", "general")
			h.join(b, "bob", "general")
			h.join(c, "carol", "random")
			h.dispatch(a, domain.NewSendRequest(1, "read me", ""))
			h.settle()
			msg := lastMessage(t, a.take())
			b.take()
			c.take()

			h.dispatch(a, domain.NewReadRequest(msg.ID))
			h.dispatch(b, domain.NewReadRequest(msg.ID))
			h.settle()

			evs := expectEvents(t, a, "message:read:update")
			if got := evs[0].Payload.(domain.ReadUpdate); got.ReaderID != "B" || got.MessageID != msg.ID {
				t.Errorf("read update = %+v", got)
			}
			if tt.outsiderSees {
				expectEvents(t, c, "message:read:update")
			} else {
				expectEvents(t, c)
			}

			history, _ := h.u.Messages(h.ctx, "general", domain.MessageQuery{Limit: 20})
			if !equalStrings(history[0].ReadBy, []string{"B"}) {
				t.Errorf("ReadBy = %v, sender must not be recorded", history[0].ReadBy)
			}
		})
	}
}

func TestStreamUsecase_TypingScope(t *testing.T) {
	policy := domain.DefaultBroadcastPolicy()
	policy.TypingScope = domain.ScopeGlobal
	h := newHarness(t, usecase.WithBroadcastPolicy(policy))
	a, c := h.connect("A"), h.connect("C")
	h.join(a, "alice", "general")
	h.join(c, "carol", "random")
	h.settle()
	a.take()
	c.take()

	h.dispatch(a, domain.NewTypingRequest(true))
	h.settle()
	evs := expectEvents(t, c, "typing_users")
	if got := evs[0].Payload.([]string); !equalStrings(got, []string{"alice"}) {
		t.Errorf("typing_users = %v", got)
	}
}

func TestStreamUsecase_RejoinSwitchesRoom(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(a, "alice", "general")
	h.join(b, "bob", "general")
	h.dispatch(a, domain.NewTypingRequest(true))
	h.settle()
	a.take()
	b.take()

	h.join(a, "alice", "random")
	h.settle()
	evs := expectEvents(t, b, "user_left", "userNotification", "user_list", "typing_users")
	if got := sessionNames(evs[2].Payload); !equalStrings(got, []string{"bob"}) {
		t.Errorf("general user_list = %v", got)
	}
	evs = expectEvents(t, a, "user_list", "user_joined", "userNotification")
	if got := sessionNames(evs[0].Payload); !equalStrings(got, []string{"alice"}) {
		t.Errorf("random user_list = %v", got)
	}

	h.dispatch(a, domain.NewSendRequest(0, "hello random", ""))
	h.settle()
	expectEvents(t, b)
}

func TestStreamUsecase_SlowConsumerIsClosed(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	slow := &fakeConn{id: "S", capacity: 2}
	if err := h.u.Attach(h.ctx, slow); err != nil {
		t.Fatal(err)
	}
	h.join(a, "alice", "general")
	h.join(slow, "sloth", "general")
	h.dispatch(a, domain.NewSendRequest(0, "hi", ""))
	h.settle()

	if !errors.Is(slow.closeReason(), usecase.ErrSlowConsumer) {
		t.Errorf("slow consumer close reason = %v", slow.closeReason())
	}
	if a.closeReason() != nil {
		t.Errorf("healthy connection was closed: %v", a.closeReason())
	}
	if n := len(eventNames(a.take())); n == 0 {
		t.Error("fan-out to the healthy connection stalled")
	}
}

func TestStreamUsecase_QueriesAndStats(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.connect("C")
	h.join(a, "alice", "general")
	h.join(b, "bob", "random")
	h.settle()

	stats, err := h.u.Stats(h.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Connections != 3 || stats.Sessions != 2 || stats.Rooms["general"] != 1 || stats.Rooms["random"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	sessions, err := h.u.Sessions(h.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := sessionNames(sessions); !equalStrings(got, []string{"alice", "bob"}) {
		t.Errorf("sessions = %v", got)
	}

	if _, err := h.u.Messages(h.ctx, "", domain.MessageQuery{Limit: 20}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("Messages(no room) error = %v, want ErrInvalidRequest", err)
	}

	h.dispatch(a, domain.NewSendRequest(0, "g", ""))
	h.dispatch(b, domain.NewSendRequest(0, "r", ""))
	recent, err := h.u.RecentMessages(h.ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Body != "g" || recent[1].Body != "r" {
		t.Errorf("recent = %v", recent)
	}
}

func TestStreamUsecase_ShutdownClosesConnections(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.join(a, "alice", "general")
	h.settle()

	h.cancel()
	<-h.u.Done()

	if a.closeReason() == nil {
		t.Error("connection left open after shutdown")
	}
	if err := h.u.Dispatch(context.Background(), "A", domain.NewTypingRequest(true)); !errors.Is(err, usecase.ErrClosed) {
		t.Errorf("Dispatch after shutdown = %v, want ErrClosed", err)
	}
}
