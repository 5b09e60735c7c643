// Package initiative implements the Hour-Glass action scheduler. An
// actor proposes an action with a sand cost and a priority; the
// scheduler either admits it for immediate execution or defers it until
// enough sand will plausibly have regenerated.
package initiative

import (
	"time"
)

// Kind enumerates the categories of combat actions.
type Kind int

// The action kinds known to the scheduler.
const (
	KindStandard Kind = iota
	KindEndTurn
	KindWithdraw
	KindReaction
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindEndTurn:
		return "end-turn"
	case KindWithdraw:
		return "withdraw"
	case KindReaction:
		return "reaction"
	}

	return "unknown"
}

// An Action is a proposed combat action waiting to execute. Deferred
// actions carry the earliest wall-clock time at which their cost can be
// afforded; immediate actions have a zero ReadyAt.
type Action struct {
	ID          string
	ActorID     string
	Cost        int
	Priority    int
	Kind        Kind
	RequestedAt time.Time
	ReadyAt     time.Time

	reschedules int
	seq         uint64
}

// Reschedules returns how many times the action has been re-deferred
// after popping unaffordable.
func (a *Action) Reschedules() int {
	return a.reschedules
}
