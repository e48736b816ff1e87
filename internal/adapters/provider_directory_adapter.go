// Package adapters contains anti-corruption adapters between bounded
// contexts. Each adapter implements a port interface of the consuming module
// against the service or repository of the providing module.
package adapters

import (
	"context"
	"errors"

	"localpros_backend/internal/leads/ports"
	"localpros_backend/internal/providers/domain"
	"localpros_backend/internal/providers/repository"

	"github.com/google/uuid"
)

// ProviderDirectoryAdapter implements ports.ProviderDirectory for the leads
// module on top of the providers repository.
type ProviderDirectoryAdapter struct {
	repo *repository.Repository
}

// NewProviderDirectoryAdapter creates the adapter.
func NewProviderDirectoryAdapter(repo *repository.Repository) *ProviderDirectoryAdapter {
	return &ProviderDirectoryAdapter{repo: repo}
}

func (a *ProviderDirectoryAdapter) GetProvider(ctx context.Context, id uuid.UUID) (ports.ProviderInfo, error) {
	p, err := a.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ports.ProviderInfo{}, ports.ErrProviderNotFound
		}
		return ports.ProviderInfo{}, err
	}
	return toInfo(p), nil
}

// ListEligibleProviders filters the published listings of a metro down to the
// lead-eligible ones. The repository returns rows ordered by id text, so the
// eligible subset keeps that order.
func (a *ProviderDirectoryAdapter) ListEligibleProviders(ctx context.Context, metroID uuid.UUID) ([]ports.ProviderInfo, error) {
	published, err := a.repo.ListPublishedByMetro(ctx, metroID)
	if err != nil {
		return nil, err
	}

	eligible := make([]ports.ProviderInfo, 0, len(published))
	for _, p := range published {
		info := toInfo(p)
		if info.LeadEligible {
			eligible = append(eligible, info)
		}
	}
	return eligible, nil
}

func (a *ProviderDirectoryAdapter) FindProviderForUser(ctx context.Context, userID uuid.UUID) (ports.ProviderInfo, error) {
	p, err := a.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ports.ProviderInfo{}, ports.ErrProviderNotFound
		}
		return ports.ProviderInfo{}, err
	}
	return toInfo(p), nil
}

func toInfo(p repository.Provider) ports.ProviderInfo {
	state := domain.ComputeState(domain.ClaimAttributes{
		VerifiedAt:      p.VerifiedAt,
		UserID:          p.UserID,
		ClaimStatus:     p.ClaimStatus,
		IsClaimed:       p.IsClaimed,
		ClaimedByUserID: p.ClaimedByUserID,
	})
	return ports.ProviderInfo{
		ID:           p.ID,
		MetroID:      p.MetroID,
		BusinessName: p.BusinessName,
		PublicEmail:  p.PublicEmail,
		LeadEligible: domain.EligibleForLeads(p.IsPublished, p.Status, state),
	}
}

// Compile-time check that the adapter implements the port.
var _ ports.ProviderDirectory = (*ProviderDirectoryAdapter)(nil)
