// Package ports defines the interfaces the leads bounded context needs from
// other modules. Implementations live in internal/adapters.
package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrProviderNotFound is returned when a referenced provider does not exist.
var ErrProviderNotFound = errors.New("provider not found")

// ProviderInfo is the slice of a provider listing the leads context needs.
type ProviderInfo struct {
	ID           uuid.UUID
	MetroID      uuid.UUID
	BusinessName string
	PublicEmail  *string
	// LeadEligible is the derived eligibility: published, active and verified.
	LeadEligible bool
}

// ProviderDirectory exposes provider lookups to the leads context.
type ProviderDirectory interface {
	// GetProvider loads a single provider.
	GetProvider(ctx context.Context, id uuid.UUID) (ProviderInfo, error)

	// ListEligibleProviders returns the lead-eligible providers of a metro,
	// ordered ascending by the text representation of their id. The ordering
	// is the round-robin fairness contract.
	ListEligibleProviders(ctx context.Context, metroID uuid.UUID) ([]ProviderInfo, error)

	// FindProviderForUser resolves the provider a user account is linked to,
	// for provider-actor authorization.
	FindProviderForUser(ctx context.Context, userID uuid.UUID) (ProviderInfo, error)
}
