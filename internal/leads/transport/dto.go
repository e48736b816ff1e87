// Package transport defines the HTTP DTOs for the leads module.
package transport

import (
	"time"

	"localpros_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// SubmitLeadRequest is a public quote request. Either providerId (bound lead)
// or metroId (pooled lead) must be present; the handler enforces that.
type SubmitLeadRequest struct {
	ProviderID *string `json:"providerId" validate:"omitempty,uuid"`
	MetroID    *string `json:"metroId" validate:"omitempty,uuid"`
	CategoryID string  `json:"categoryId" validate:"required,uuid"`
	Name       string  `json:"name" validate:"required,min=2,max=120"`
	Email      string  `json:"email" validate:"required,email,max=254"`
	Phone      string  `json:"phone" validate:"omitempty,max=32"`
	Message    string  `json:"message" validate:"omitempty,max=4000"`
}

// ResolveLeadRequest closes out a lead. Empty status defaults to closed.
type ResolveLeadRequest struct {
	ResolutionStatus string `json:"resolutionStatus" validate:"omitempty,oneof=won lost closed spam"`
}

// DeclineLeadRequest rejects an assigned lead. The reason is mandatory.
type DeclineLeadRequest struct {
	Reason string `json:"reason" validate:"required,min=2,max=200"`
	Note   string `json:"note" validate:"omitempty,max=1000"`
}

// ReassignLeadRequest moves a lead to an admin-chosen provider.
type ReassignLeadRequest struct {
	ProviderID string `json:"providerId" validate:"required,uuid"`
}

// EscalateLeadRequest flags a lead for admin follow-up.
type EscalateLeadRequest struct {
	Reason string `json:"reason" validate:"required,min=2,max=500"`
}

// BoardFieldsRequest updates the admin planning fields.
type BoardFieldsRequest struct {
	FollowUpAt *time.Time `json:"followUpAt"`
	NextAction *string    `json:"nextAction" validate:"omitempty,max=200"`
}

// LeadResponse is the lead representation returned to authenticated callers.
// LifecycleState is derived, never stored.
type LeadResponse struct {
	ID               uuid.UUID  `json:"id"`
	ProviderID       *uuid.UUID `json:"providerId,omitempty"`
	MetroID          uuid.UUID  `json:"metroId"`
	CategoryID       uuid.UUID  `json:"categoryId"`
	RequesterName    string     `json:"requesterName"`
	RequesterEmail   string     `json:"requesterEmail"`
	RequesterPhone   *string    `json:"requesterPhone,omitempty"`
	Message          string     `json:"message"`
	LifecycleState   string     `json:"lifecycleState"`
	Status           string     `json:"status"`
	DeliveryStatus   string     `json:"deliveryStatus"`
	DeliveredAt      *time.Time `json:"deliveredAt,omitempty"`
	DeliveryError    *string    `json:"deliveryError,omitempty"`
	ViewedAt         *time.Time `json:"viewedAt,omitempty"`
	LastContactedAt  *time.Time `json:"lastContactedAt,omitempty"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
	ResolutionStatus *string    `json:"resolutionStatus,omitempty"`
	EscalatedAt      *time.Time `json:"escalatedAt,omitempty"`
	EscalationReason *string    `json:"escalationReason,omitempty"`
	DeclinedAt       *time.Time `json:"declinedAt,omitempty"`
	DeclineReason    *string    `json:"declineReason,omitempty"`
	FollowUpAt       *time.Time `json:"followUpAt,omitempty"`
	NextAction       *string    `json:"nextAction,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// FromLead maps a repository lead to its response form.
func FromLead(l repository.Lead) LeadResponse {
	return LeadResponse{
		ID:               l.ID,
		ProviderID:       l.ProviderID,
		MetroID:          l.MetroID,
		CategoryID:       l.CategoryID,
		RequesterName:    l.RequesterName,
		RequesterEmail:   l.RequesterEmail,
		RequesterPhone:   l.RequesterPhone,
		Message:          l.Message,
		LifecycleState:   string(l.LifecycleState()),
		Status:           l.Status,
		DeliveryStatus:   l.DeliveryStatus,
		DeliveredAt:      l.DeliveredAt,
		DeliveryError:    l.DeliveryError,
		ViewedAt:         l.ViewedAt,
		LastContactedAt:  l.LastContactedAt,
		ResolvedAt:       l.ResolvedAt,
		ResolutionStatus: l.ResolutionStatus,
		EscalatedAt:      l.EscalatedAt,
		EscalationReason: l.EscalationReason,
		DeclinedAt:       l.DeclinedAt,
		DeclineReason:    l.DeclineReason,
		FollowUpAt:       l.FollowUpAt,
		NextAction:       l.NextAction,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}

// FromLeads maps a slice of repository leads.
func FromLeads(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, FromLead(l))
	}
	return out
}

// LeadEventResponse is one timeline entry.
type LeadEventResponse struct {
	ID          uuid.UUID      `json:"id"`
	LeadID      uuid.UUID      `json:"leadId"`
	ActorType   string         `json:"actorType"`
	ActorUserID *uuid.UUID     `json:"actorUserId,omitempty"`
	EventType   string         `json:"eventType"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// FromLeadEvents maps a slice of repository lead events.
func FromLeadEvents(items []repository.LeadEvent) []LeadEventResponse {
	out := make([]LeadEventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, LeadEventResponse{
			ID:          e.ID,
			LeadID:      e.LeadID,
			ActorType:   e.ActorType,
			ActorUserID: e.ActorUserID,
			EventType:   e.EventType,
			Data:        e.Data,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

// SubmitLeadResponse is returned to the public submitter. It deliberately
// omits routing detail beyond the lead id and a human-readable message.
type SubmitLeadResponse struct {
	LeadID  uuid.UUID `json:"leadId"`
	Message string    `json:"message"`
}

// RotationResponse exposes a metro's rotation pointer for admin screens.
type RotationResponse struct {
	MetroID        uuid.UUID  `json:"metroId"`
	LastProviderID *uuid.UUID `json:"lastProviderId,omitempty"`
	LastAssignedAt *time.Time `json:"lastAssignedAt,omitempty"`
}
