package domain

import "fmt"

// Scope selects who receives typing lists and read receipts.
type Scope string

const (
	ScopeRoom   Scope = "room"
	ScopeGlobal Scope = "global"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeRoom, ScopeGlobal:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown broadcast scope %q (want room or global)", s)
	}
}

type BroadcastPolicy struct {
	TypingScope Scope
	ReadScope   Scope
}

func DefaultBroadcastPolicy() BroadcastPolicy {
	return BroadcastPolicy{
		TypingScope: ScopeRoom,
		ReadScope:   ScopeRoom,
	}
}
