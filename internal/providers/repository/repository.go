package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("provider not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Provider is a business listing in the directory.
type Provider struct {
	ID              uuid.UUID
	MetroID         uuid.UUID
	CategoryID      uuid.UUID
	BusinessName    string
	PublicEmail     *string
	PublicPhone     *string
	IsPublished     bool
	Status          string
	ClaimStatus     string
	VerifiedAt      *time.Time
	ClaimedByUserID *uuid.UUID
	IsClaimed       bool
	UserID          *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const providerSelectCols = `
	id, metro_id, category_id, business_name, public_email, public_phone,
	is_published, status, claim_status, verified_at, claimed_by_user_id, is_claimed, user_id,
	created_at, updated_at`

type providerRowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(s providerRowScanner) (Provider, error) {
	var p Provider
	err := s.Scan(
		&p.ID,
		&p.MetroID,
		&p.CategoryID,
		&p.BusinessName,
		&p.PublicEmail,
		&p.PublicPhone,
		&p.IsPublished,
		&p.Status,
		&p.ClaimStatus,
		&p.VerifiedAt,
		&p.ClaimedByUserID,
		&p.IsClaimed,
		&p.UserID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// GetByID loads a single provider.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+providerSelectCols+`
		FROM providers
		WHERE id = $1
	`, id)

	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Provider{}, ErrNotFound
		}
		return Provider{}, err
	}
	return p, nil
}

// GetByUserID finds the provider a user account is linked to, either through
// the account link or the claim record. Used for provider-actor authorization.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+providerSelectCols+`
		FROM providers
		WHERE user_id = $1 OR claimed_by_user_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, userID)

	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Provider{}, ErrNotFound
		}
		return Provider{}, err
	}
	return p, nil
}

// ListPublishedByMetro returns all published providers in a metro, ordered by
// the text representation of their id. The ordering is the rotation fairness
// contract: deterministic and independent of insertion order. Eligibility
// filtering happens in the caller, on the derived state.
func (r *Repository) ListPublishedByMetro(ctx context.Context, metroID uuid.UUID) ([]Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+providerSelectCols+`
		FROM providers
		WHERE metro_id = $1 AND is_published = true
		ORDER BY id::text ASC
	`, metroID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Provider, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateProviderParams holds the fields for a new listing.
type CreateProviderParams struct {
	MetroID      uuid.UUID
	CategoryID   uuid.UUID
	BusinessName string
	PublicEmail  *string
	PublicPhone  *string
	IsPublished  bool
	ClaimStatus  string
}

// Create inserts a new provider listing. Status starts "active"; claim and
// verification fields are mutated later by the claims-review workflow.
func (r *Repository) Create(ctx context.Context, params CreateProviderParams) (Provider, error) {
	claimStatus := params.ClaimStatus
	if claimStatus == "" {
		claimStatus = "unclaimed"
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO providers (metro_id, category_id, business_name, public_email, public_phone, is_published, status, claim_status)
		VALUES ($1, $2, $3, $4, $5, $6, 'active', $7)
		RETURNING`+providerSelectCols+`
	`, params.MetroID, params.CategoryID, params.BusinessName, params.PublicEmail, params.PublicPhone, params.IsPublished, claimStatus)

	return scanProvider(row)
}

// SetPublished toggles the publish flag.
func (r *Repository) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE providers SET is_published = $2, updated_at = now() WHERE id = $1
	`, id, published)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
