// Package service contains provider directory operations.
package service

import (
	"context"
	"errors"

	"localpros_backend/internal/providers/domain"
	"localpros_backend/internal/providers/repository"
	"localpros_backend/internal/providers/transport"
	"localpros_backend/platform/apperr"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the directory service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Provider, error)
	ListPublishedByMetro(ctx context.Context, metroID uuid.UUID) ([]repository.Provider, error)
	Create(ctx context.Context, params repository.CreateProviderParams) (repository.Provider, error)
	SetPublished(ctx context.Context, id uuid.UUID, published bool) error
}

// Service handles provider directory operations.
type Service struct {
	repo Repository
}

// New creates a new provider directory service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetByID retrieves a provider with its derived state, for admin screens.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.ProviderResponse, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ProviderResponse{}, apperr.NotFound("provider not found")
		}
		return transport.ProviderResponse{}, err
	}
	return toResponse(p), nil
}

// ListPublicByMetro returns the published, active listings for a metro
// directory page.
func (s *Service) ListPublicByMetro(ctx context.Context, metroID uuid.UUID) ([]transport.PublicProviderResponse, error) {
	items, err := s.repo.ListPublishedByMetro(ctx, metroID)
	if err != nil {
		return nil, err
	}

	out := make([]transport.PublicProviderResponse, 0, len(items))
	for _, p := range items {
		if p.Status != domain.StatusActive {
			continue
		}
		out = append(out, transport.PublicProviderResponse{
			ID:           p.ID,
			MetroID:      p.MetroID,
			CategoryID:   p.CategoryID,
			BusinessName: p.BusinessName,
			PublicPhone:  p.PublicPhone,
			Verified:     ComputeState(p) == domain.StateVerified,
		})
	}
	return out, nil
}

// Create registers a new listing (admin onboarding approval).
func (s *Service) Create(ctx context.Context, req transport.CreateProviderRequest) (transport.ProviderResponse, error) {
	params := repository.CreateProviderParams{
		MetroID:      req.MetroID,
		CategoryID:   req.CategoryID,
		BusinessName: req.BusinessName,
		IsPublished:  req.IsPublished,
	}
	if req.PublicEmail != "" {
		params.PublicEmail = &req.PublicEmail
	}
	if req.PublicPhone != "" {
		params.PublicPhone = &req.PublicPhone
	}

	p, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.ProviderResponse{}, err
	}
	return toResponse(p), nil
}

// SetPublished toggles a listing's publish flag.
func (s *Service) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	if err := s.repo.SetPublished(ctx, id, published); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("provider not found")
		}
		return err
	}
	return nil
}

// ComputeState derives the claim state for a stored provider row.
func ComputeState(p repository.Provider) domain.State {
	return domain.ComputeState(domain.ClaimAttributes{
		VerifiedAt:      p.VerifiedAt,
		UserID:          p.UserID,
		ClaimStatus:     p.ClaimStatus,
		IsClaimed:       p.IsClaimed,
		ClaimedByUserID: p.ClaimedByUserID,
	})
}

func toResponse(p repository.Provider) transport.ProviderResponse {
	state := ComputeState(p)
	return transport.ProviderResponse{
		ID:           p.ID,
		MetroID:      p.MetroID,
		CategoryID:   p.CategoryID,
		BusinessName: p.BusinessName,
		PublicEmail:  p.PublicEmail,
		PublicPhone:  p.PublicPhone,
		IsPublished:  p.IsPublished,
		Status:       p.Status,
		State:        string(state),
		LeadEligible: domain.EligibleForLeads(p.IsPublished, p.Status, state),
		CreatedAt:    p.CreatedAt,
	}
}
