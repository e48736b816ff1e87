package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MetroRotation is the per-metro round-robin pointer: one row per metro,
// unique on metro_id, created lazily on first pool assignment.
type MetroRotation struct {
	MetroID        uuid.UUID
	LastProviderID *uuid.UUID
	LastAssignedAt *time.Time
}

// GetRotation loads a metro's rotation pointer. Returns nil when the metro
// has never had a pool assignment.
func (r *Repository) GetRotation(ctx context.Context, metroID uuid.UUID) (*MetroRotation, error) {
	var rotation MetroRotation
	err := r.pool.QueryRow(ctx, `
		SELECT metro_id, last_provider_id, last_assigned_at
		FROM metro_rotation
		WHERE metro_id = $1
	`, metroID).Scan(&rotation.MetroID, &rotation.LastProviderID, &rotation.LastAssignedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rotation, nil
}

// ErrRotationConflict reports that the rotation pointer moved between the
// caller's read and the assignment transaction. The caller re-reads the
// pointer and picks again.
var ErrRotationConflict = errors.New("rotation pointer advanced concurrently")

// AssignLeadAndAdvanceRotation performs the rotation upsert and the lead
// assignment in one transaction. The upsert is a compare-and-swap on the
// pointer the caller read (prevProviderID): when another assignment advanced
// it in the meantime the update matches no row and the whole transaction
// rolls back with ErrRotationConflict, so two concurrent assignments can
// never both claim the same rotation slot.
func (r *Repository) AssignLeadAndAdvanceRotation(ctx context.Context, metroID, leadID, providerID uuid.UUID, prevProviderID *uuid.UUID, at time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO metro_rotation (metro_id, last_provider_id, last_assigned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (metro_id)
		DO UPDATE SET last_provider_id = EXCLUDED.last_provider_id, last_assigned_at = EXCLUDED.last_assigned_at
		WHERE metro_rotation.last_provider_id IS NOT DISTINCT FROM $4
	`, metroID, providerID, at, prevProviderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRotationConflict
	}

	tag, err = tx.Exec(ctx, `
		UPDATE leads
		SET provider_id = $2, delivery_status = $3, delivery_error = NULL, updated_at = now()
		WHERE id = $1
	`, leadID, providerID, DeliveryPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

// ResetRotation clears a metro's rotation pointer so the next pool assignment
// restarts at the first eligible provider in sorted order. A metro without a
// rotation row is already reset.
func (r *Repository) ResetRotation(ctx context.Context, metroID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE metro_rotation
		SET last_provider_id = NULL
		WHERE metro_id = $1
	`, metroID)
	return err
}
