package repository

import (
	"context"
	"errors"
	"time"

	"localpros_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

// Coarse legacy lead statuses, kept for admin list screens.
const (
	StatusNew    = "new"
	StatusSent   = "sent"
	StatusFailed = "failed"
	StatusSpam   = "spam"
)

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
	DeliverySkipped   = "skipped"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lead is one quote request. ProviderID nil means the lead sits in the metro
// pool awaiting round-robin assignment.
type Lead struct {
	ID                   uuid.UUID
	ProviderID           *uuid.UUID
	MetroID              uuid.UUID
	CategoryID           uuid.UUID
	RequesterName        string
	RequesterEmail       string
	RequesterPhone       *string
	Message              string
	Status               string
	DeliveryStatus       string
	DeliveredAt          *time.Time
	DeliveryError        *string
	ViewedAt             *time.Time
	LastContactedAt      *time.Time
	ResolvedAt           *time.Time
	ResolutionStatus     *string
	EscalatedAt          *time.Time
	EscalationReason     *string
	DeclinedAt           *time.Time
	DeclineReason        *string
	DeclinedByProviderID *uuid.UUID
	FollowUpAt           *time.Time
	NextAction           *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// LifecycleState derives the lead's lifecycle state from its timestamps.
func (l Lead) LifecycleState() domain.State {
	return domain.DeriveState(domain.Timestamps{
		ViewedAt:        l.ViewedAt,
		LastContactedAt: l.LastContactedAt,
		EscalatedAt:     l.EscalatedAt,
		ResolvedAt:      l.ResolvedAt,
	})
}

const leadSelectCols = `
	id, provider_id, metro_id, category_id, requester_name, requester_email, requester_phone, message,
	status, delivery_status, delivered_at, delivery_error,
	viewed_at, last_contacted_at, resolved_at, resolution_status,
	escalated_at, escalation_reason, declined_at, decline_reason, declined_by_provider_id,
	follow_up_at, next_action, created_at, updated_at`

type leadRowScanner interface {
	Scan(dest ...any) error
}

func scanLead(s leadRowScanner) (Lead, error) {
	var l Lead
	err := s.Scan(
		&l.ID,
		&l.ProviderID,
		&l.MetroID,
		&l.CategoryID,
		&l.RequesterName,
		&l.RequesterEmail,
		&l.RequesterPhone,
		&l.Message,
		&l.Status,
		&l.DeliveryStatus,
		&l.DeliveredAt,
		&l.DeliveryError,
		&l.ViewedAt,
		&l.LastContactedAt,
		&l.ResolvedAt,
		&l.ResolutionStatus,
		&l.EscalatedAt,
		&l.EscalationReason,
		&l.DeclinedAt,
		&l.DeclineReason,
		&l.DeclinedByProviderID,
		&l.FollowUpAt,
		&l.NextAction,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

// CreateLeadParams holds the fields for a new quote request.
type CreateLeadParams struct {
	ProviderID     *uuid.UUID
	MetroID        uuid.UUID
	CategoryID     uuid.UUID
	RequesterName  string
	RequesterEmail string
	RequesterPhone *string
	Message        string
	DeliveryStatus string
	DeliveryError  *string
}

// Create inserts a new lead.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	deliveryStatus := params.DeliveryStatus
	if deliveryStatus == "" {
		deliveryStatus = DeliveryPending
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (provider_id, metro_id, category_id, requester_name, requester_email, requester_phone, message, status, delivery_status, delivery_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING`+leadSelectCols+`
	`, params.ProviderID, params.MetroID, params.CategoryID, params.RequesterName, params.RequesterEmail, params.RequesterPhone, params.Message, StatusNew, deliveryStatus, params.DeliveryError)

	return scanLead(row)
}

// GetByID loads a single lead.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+leadSelectCols+`
		FROM leads
		WHERE id = $1
	`, id)

	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return l, nil
}

// ListByProvider returns a provider's assigned leads, newest first.
func (r *Repository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadSelectCols+`
		FROM leads
		WHERE provider_id = $1
		ORDER BY created_at DESC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

// ListUndelivered returns assigned leads whose delivery is still pending or
// failed and that are older than the cutoff. Feeds the operator digest; these
// are recoverable states, retriable through the same deliver entry point.
func (r *Repository) ListUndelivered(ctx context.Context, olderThan time.Time) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadSelectCols+`
		FROM leads
		WHERE provider_id IS NOT NULL
		  AND delivery_status IN ($1, $2)
		  AND created_at < $3
		ORDER BY created_at ASC
	`, DeliveryPending, DeliveryFailed, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	items := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateAssignment points a lead at a provider (or back to the pool when
// providerID is nil) and resets its delivery bookkeeping.
func (r *Repository) UpdateAssignment(ctx context.Context, leadID uuid.UUID, providerID *uuid.UUID, deliveryStatus string, deliveryError *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET provider_id = $2, delivery_status = $3, delivery_error = $4, updated_at = now()
		WHERE id = $1
	`, leadID, providerID, deliveryStatus, deliveryError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDelivered stamps a successful delivery: status sent, error cleared.
func (r *Repository) MarkDelivered(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET delivery_status = $2, delivered_at = $3, delivery_error = NULL, status = $4, updated_at = now()
		WHERE id = $1
	`, leadID, DeliveryDelivered, at, StatusSent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDeliveryFailed stamps a failed delivery with the (pre-truncated) error text.
func (r *Repository) MarkDeliveryFailed(ctx context.Context, leadID uuid.UUID, errText string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET delivery_status = $2, delivery_error = $3, status = $4, updated_at = now()
		WHERE id = $1
	`, leadID, DeliveryFailed, errText, StatusFailed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDeliverySkipped stamps a skipped delivery with the reason.
func (r *Repository) MarkDeliverySkipped(ctx context.Context, leadID uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET delivery_status = $2, delivery_error = $3, updated_at = now()
		WHERE id = $1
	`, leadID, DeliverySkipped, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
