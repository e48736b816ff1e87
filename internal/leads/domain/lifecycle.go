// Package domain provides core business rules for the leads bounded context.
package domain

import "time"

// State is the lead lifecycle state. It is never stored: it is derived from
// the lifecycle timestamps, so the timestamps remain the single source of
// truth and cannot drift from a redundant enum.
type State string

const (
	StateNew       State = "new"
	StateViewed    State = "viewed"
	StateContacted State = "contacted"
	StateEscalated State = "escalated"
	StateResolved  State = "resolved"
)

// Timestamps are the nullable lifecycle markers on a lead. They are set
// monotonically and never cleared.
type Timestamps struct {
	ViewedAt        *time.Time
	LastContactedAt *time.Time
	EscalatedAt     *time.Time
	ResolvedAt      *time.Time
}

// DeriveState computes the lifecycle state from the timestamps by priority.
// A later-priority timestamp dominates regardless of earlier ones also being
// present; the schema does not make them mutually exclusive.
func DeriveState(ts Timestamps) State {
	switch {
	case ts.ResolvedAt != nil:
		return StateResolved
	case ts.EscalatedAt != nil:
		return StateEscalated
	case ts.LastContactedAt != nil:
		return StateContacted
	case ts.ViewedAt != nil:
		return StateViewed
	default:
		return StateNew
	}
}

// forwardOrder indexes the provider-reachable forward path.
// Escalated is deliberately absent: it is never reachable by a provider actor.
var forwardOrder = map[State]int{
	StateNew:       0,
	StateViewed:    1,
	StateContacted: 2,
	StateResolved:  3,
}

// CanProviderTransition reports whether a provider may move a lead from one
// state to another. Providers are restricted to forward, one-step moves on the
// new -> viewed -> contacted -> resolved path. Re-entering the current
// contacted state is allowed (repeat contact refreshes the timestamp).
func CanProviderTransition(from, to State) bool {
	if to == StateEscalated || from == StateEscalated {
		return false
	}
	if from == StateResolved {
		return false
	}
	if from == StateContacted && to == StateContacted {
		return true
	}

	fromIdx, ok := forwardOrder[from]
	if !ok {
		return false
	}
	toIdx, ok := forwardOrder[to]
	if !ok {
		return false
	}
	return toIdx == fromIdx+1
}

// CanAdminTransition reports whether an admin may move a lead from one state
// to another. Admins may set any lifecycle field directly, except that a
// resolved lead accepts no further transitions.
func CanAdminTransition(from, to State) bool {
	return from != StateResolved
}

// Resolution statuses.
const (
	ResolutionWon    = "won"
	ResolutionLost   = "lost"
	ResolutionClosed = "closed"
	ResolutionSpam   = "spam"
)

// DefaultResolution is used when a resolve action carries no status.
const DefaultResolution = ResolutionClosed

// IsValidResolution reports whether the value is a known resolution status.
func IsValidResolution(status string) bool {
	switch status {
	case ResolutionWon, ResolutionLost, ResolutionClosed, ResolutionSpam:
		return true
	}
	return false
}
