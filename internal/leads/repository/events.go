package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Lead event types. The event log is the single source of truth for audit and
// timeline views; rows are append-only, never mutated or deleted.
const (
	EventAssignedToProvider = "assigned_to_provider"
	EventDeliveryAttempted  = "delivery_attempted"
	EventDeliverySucceeded  = "delivery_succeeded"
	EventDeliveryFailed     = "delivery_failed"
	EventDeliverySkipped    = "delivery_skipped"
	EventProviderDeclined   = "provider_declined"
	EventReturnedToPool     = "returned_to_pool"
	EventStatusUpdated      = "status_updated"
	EventMovedOnBoard       = "moved_on_board"
)

// ErrorTextMaxLen is the canonical maximum length for persisted error detail
// (delivery_error and event payload values). Callers should use TruncateError
// before handing transport errors to the repository.
const ErrorTextMaxLen = 500

// TruncateError trims error text to at most maxLen bytes to bound storage
// growth. The cut lands on a rune boundary so truncated text stays valid
// UTF-8; Postgres rejects text with a rune sliced in half.
func TruncateError(text string, maxLen int) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= maxLen {
		return trimmed
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut]
}

// LeadEvent is one immutable audit record for a lead. Seq is the insertion
// sequence, the ordering tiebreaker for events sharing a created_at.
type LeadEvent struct {
	ID          uuid.UUID
	Seq         int64
	LeadID      uuid.UUID
	ActorType   string
	ActorUserID *uuid.UUID
	EventType   string
	Data        map[string]any
	CreatedAt   time.Time
}

// CreateLeadEventParams holds the fields for a new audit record.
type CreateLeadEventParams struct {
	LeadID      uuid.UUID
	ActorType   string
	ActorUserID *uuid.UUID
	EventType   string
	Data        map[string]any
}

// CreateLeadEvent appends one audit record. It fails only on storage
// unavailability.
func (r *Repository) CreateLeadEvent(ctx context.Context, params CreateLeadEventParams) (LeadEvent, error) {
	dataJSON, err := json.Marshal(params.Data)
	if err != nil {
		return LeadEvent{}, err
	}

	var event LeadEvent
	var rawActorUserID *uuid.UUID

	// data is excluded from RETURNING: we already hold params.Data as a Go
	// value, and re-scanning the stored JSONB would add a redundant
	// json.Unmarshal on every insert.
	err = r.pool.QueryRow(ctx, `
		INSERT INTO lead_events (lead_id, actor_type, actor_user_id, event_type, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, seq, lead_id, actor_type, actor_user_id, event_type, created_at
	`, params.LeadID, params.ActorType, params.ActorUserID, params.EventType, dataJSON).Scan(
		&event.ID,
		&event.Seq,
		&event.LeadID,
		&event.ActorType,
		&rawActorUserID,
		&event.EventType,
		&event.CreatedAt,
	)
	if err != nil {
		return LeadEvent{}, err
	}

	event.ActorUserID = rawActorUserID
	event.Data = params.Data

	return event, nil
}

// ListLeadEvents returns all audit records for a lead, newest first.
func (r *Repository) ListLeadEvents(ctx context.Context, leadID uuid.UUID) ([]LeadEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, seq, lead_id, actor_type, actor_user_id, event_type, data, created_at
		FROM lead_events
		WHERE lead_id = $1
		ORDER BY created_at DESC, seq DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]LeadEvent, 0)
	for rows.Next() {
		var event LeadEvent
		var rawActorUserID *uuid.UUID
		var rawData []byte
		if err := rows.Scan(
			&event.ID,
			&event.Seq,
			&event.LeadID,
			&event.ActorType,
			&rawActorUserID,
			&event.EventType,
			&rawData,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		event.ActorUserID = rawActorUserID
		if len(rawData) > 0 {
			_ = json.Unmarshal(rawData, &event.Data)
		}
		items = append(items, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
