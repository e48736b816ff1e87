package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Actor types recorded on lead events.
const (
	ActorSystem   = "system"
	ActorAdmin    = "admin"
	ActorProvider = "provider"
	ActorPublic   = "public"
)

// Actor identifies who is performing a lifecycle action.
type Actor struct {
	Type   string
	UserID *uuid.UUID
}

// SystemActor is the actor recorded for automated transitions (rotation
// assignment after a decline, pool re-entry).
var SystemActor = Actor{Type: ActorSystem}

// IsAdmin reports whether the actor carries admin authority.
func (a Actor) IsAdmin() bool {
	return a.Type == ActorAdmin
}

// IsProvider reports whether the actor acts on behalf of a provider.
func (a Actor) IsProvider() bool {
	return a.Type == ActorProvider
}

// FormatDeclineReason joins the required reason with the optional free-text
// note into the persisted decline reason.
func FormatDeclineReason(reason, note string) string {
	reason = strings.TrimSpace(reason)
	note = strings.TrimSpace(note)
	if note == "" {
		return reason
	}
	return reason + " — " + note
}
