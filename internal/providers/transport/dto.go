package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateProviderRequest struct {
	MetroID      uuid.UUID `json:"metroId" validate:"required"`
	CategoryID   uuid.UUID `json:"categoryId" validate:"required"`
	BusinessName string    `json:"businessName" validate:"required,min=1,max=200"`
	PublicEmail  string    `json:"publicEmail,omitempty" validate:"omitempty,email"`
	PublicPhone  string    `json:"publicPhone,omitempty" validate:"omitempty,max=50"`
	IsPublished  bool      `json:"isPublished"`
}

type SetPublishedRequest struct {
	IsPublished *bool `json:"isPublished" validate:"required"`
}

type ProviderResponse struct {
	ID           uuid.UUID `json:"id"`
	MetroID      uuid.UUID `json:"metroId"`
	CategoryID   uuid.UUID `json:"categoryId"`
	BusinessName string    `json:"businessName"`
	PublicEmail  *string   `json:"publicEmail,omitempty"`
	PublicPhone  *string   `json:"publicPhone,omitempty"`
	IsPublished  bool      `json:"isPublished"`
	Status       string    `json:"status"`
	// State is derived from claim attributes: unclaimed, claimed_unverified or verified.
	State        string    `json:"state"`
	LeadEligible bool      `json:"leadEligible"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicProviderResponse is the consumer-facing directory entry. Claim details
// are intentionally omitted.
type PublicProviderResponse struct {
	ID           uuid.UUID `json:"id"`
	MetroID      uuid.UUID `json:"metroId"`
	CategoryID   uuid.UUID `json:"categoryId"`
	BusinessName string    `json:"businessName"`
	PublicPhone  *string   `json:"publicPhone,omitempty"`
	Verified     bool      `json:"verified"`
}
