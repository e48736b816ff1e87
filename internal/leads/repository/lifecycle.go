package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lifecycle timestamp setters. Timestamps are monotonic: set once, never
// cleared. SetViewed additionally guards against overwriting an existing
// value so repeated view actions stay idempotent.

// SetViewed records the first view. A later call leaves the original stamp.
func (r *Repository) SetViewed(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET viewed_at = COALESCE(viewed_at, $2), updated_at = now()
		WHERE id = $1
	`, leadID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetContacted records a contact attempt. Repeat contact refreshes the stamp.
func (r *Repository) SetContacted(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET last_contacted_at = $2, updated_at = now()
		WHERE id = $1
	`, leadID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResolved records the terminal resolution.
func (r *Repository) SetResolved(ctx context.Context, leadID uuid.UUID, at time.Time, resolutionStatus string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET resolved_at = $2, resolution_status = $3, updated_at = now()
		WHERE id = $1
	`, leadID, at, resolutionStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEscalated records an admin escalation.
func (r *Repository) SetEscalated(ctx context.Context, leadID uuid.UUID, at time.Time, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET escalated_at = $2, escalation_reason = $3, updated_at = now()
		WHERE id = $1
	`, leadID, at, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeclineDeliveryError is stamped on a declined lead's delivery_error. The
// follow-up rotation pass overwrites it; when that pass aborts, the lead is
// left pending with this text rather than no reason at all.
const DeclineDeliveryError = "Returned to pool after provider decline"

// DeclineParams carries the decline mutation: the lead returns to the pool
// with the decline audit fields stamped.
type DeclineParams struct {
	LeadID               uuid.UUID
	DeclinedAt           time.Time
	DeclineReason        string
	DeclinedByProviderID uuid.UUID
}

// SetDeclined applies the provider-decline mutation in one statement.
func (r *Repository) SetDeclined(ctx context.Context, params DeclineParams) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET provider_id = NULL,
		    declined_at = $2,
		    decline_reason = $3,
		    declined_by_provider_id = $4,
		    delivery_status = $5,
		    delivery_error = $6,
		    updated_at = now()
		WHERE id = $1
	`, params.LeadID, params.DeclinedAt, params.DeclineReason, params.DeclinedByProviderID, DeliveryPending, DeclineDeliveryError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBoardFields updates the admin board planning fields.
func (r *Repository) SetBoardFields(ctx context.Context, leadID uuid.UUID, followUpAt *time.Time, nextAction *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET follow_up_at = $2, next_action = $3, updated_at = now()
		WHERE id = $1
	`, leadID, followUpAt, nextAction)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
