package domain

import (
	"testing"
	"time"
)

func TestTypingTracker(t *testing.T) {
	r := NewSessionRegistry()
	now := time.Now()
	r.Join(NewSession("a", "alice", "general", "", now))
	r.Join(NewSession("b", "bob", "general", "", now))
	r.Join(NewSession("c", "carol", "random", "", now))
	tr := NewTypingTracker(r)

	if tr.SetTyping("ghost", true) {
		t.Error("SetTyping on a connection without a session should be a no-op")
	}
	if !tr.SetTyping("b", true) || !tr.SetTyping("a", true) || !tr.SetTyping("c", true) {
		t.Fatal("SetTyping(true) should report a change")
	}
	if tr.SetTyping("a", true) {
		t.Error("repeated SetTyping(true) should not report a change")
	}

	if got := tr.TypingList("general"); !equalStrings(got, []string{"bob", "alice"}) {
		t.Errorf("TypingList(general) = %v, want [bob alice]", got)
	}
	if got := tr.AllTyping(); !equalStrings(got, []string{"bob", "alice", "carol"}) {
		t.Errorf("AllTyping() = %v, want [bob alice carol]", got)
	}

	tr.SetTyping("b", false)
	if got := tr.TypingList("general"); !equalStrings(got, []string{"alice"}) {
		t.Errorf("TypingList(general) after clear = %v, want [alice]", got)
	}
}

func TestTypingTracker_VanishedSessionSkipped(t *testing.T) {
	r := NewSessionRegistry()
	r.Join(NewSession("a", "alice", "general", "", time.Now()))
	tr := NewTypingTracker(r)
	tr.SetTyping("a", true)

	r.Leave("a")
	if got := tr.TypingList("general"); len(got) != 0 {
		t.Errorf("TypingList(general) = %v, want stale entry skipped", got)
	}
	if !tr.SetTyping("a", false) {
		t.Error("clearing after the session left should still remove the entry")
	}
	if tr.IsTyping("a") {
		t.Error("IsTyping(a) after clear")
	}
}

func TestTypingTracker_RoomSwitch(t *testing.T) {
	r := NewSessionRegistry()
	r.Join(NewSession("a", "alice", "general", "", time.Now()))
	tr := NewTypingTracker(r)
	tr.SetTyping("a", true)

	r.Join(NewSession("a", "alice", "random", "", time.Now()))
	if got := tr.TypingList("general"); len(got) != 0 {
		t.Errorf("TypingList(general) = %v after room switch", got)
	}
	if !tr.SetTyping("a", true) {
		t.Error("SetTyping in the new room should move the entry")
	}
	if got := tr.TypingList("random"); !equalStrings(got, []string{"alice"}) {
		t.Errorf("TypingList(random) = %v, want [alice]", got)
	}
}
