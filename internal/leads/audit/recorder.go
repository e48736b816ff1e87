// Package audit provides best-effort lead event recording.
//
// Event recording is deliberately separated from the primary state mutation:
// every mutating operation records its event after the mutation has already
// succeeded, and a failed audit write must never roll back or fail that
// mutation. Failures are surfaced to the operational logs instead.
package audit

import (
	"context"

	"localpros_backend/internal/leads/repository"
	"localpros_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the append-only event sink.
type Store interface {
	CreateLeadEvent(ctx context.Context, params repository.CreateLeadEventParams) (repository.LeadEvent, error)
}

// Recorder appends lead events, swallowing storage errors after logging them.
type Recorder struct {
	store Store
	log   *logger.Logger
}

// New creates a new audit recorder.
func New(store Store, log *logger.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// Record appends one lead event. Errors are logged and dropped.
func (r *Recorder) Record(ctx context.Context, leadID uuid.UUID, actorType string, actorUserID *uuid.UUID, eventType string, data map[string]any) {
	_, err := r.store.CreateLeadEvent(ctx, repository.CreateLeadEventParams{
		LeadID:      leadID,
		ActorType:   actorType,
		ActorUserID: actorUserID,
		EventType:   eventType,
		Data:        data,
	})
	if err != nil && r.log != nil {
		r.log.AuditWriteError(leadID.String(), eventType, err)
	}
}
