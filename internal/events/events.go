// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"localpros_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
var NewInMemoryBus = events.NewInMemoryBus

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when a quote request creates a new lead.
// ProviderID is nil for pooled (metro-only) leads.
type LeadCreated struct {
	BaseEvent
	LeadID     uuid.UUID  `json:"leadId"`
	MetroID    uuid.UUID  `json:"metroId"`
	ProviderID *uuid.UUID `json:"providerId,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadAssigned is published when the rotation assigner binds a pooled lead
// to a provider.
type LeadAssigned struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	MetroID    uuid.UUID `json:"metroId"`
	ProviderID uuid.UUID `json:"providerId"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadDeclined is published when a provider declines an assigned lead.
type LeadDeclined struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	ProviderID uuid.UUID `json:"providerId"`
	Reason     string    `json:"reason"`
}

func (e LeadDeclined) EventName() string { return "leads.lead.declined" }

// LeadDeliveryFailed is published when an email delivery attempt fails.
type LeadDeliveryFailed struct {
	BaseEvent
	LeadID     uuid.UUID  `json:"leadId"`
	ProviderID *uuid.UUID `json:"providerId,omitempty"`
	Reason     string     `json:"reason"`
}

func (e LeadDeliveryFailed) EventName() string { return "leads.delivery.failed" }

// LeadResolved is published when a lead reaches a terminal resolution.
type LeadResolved struct {
	BaseEvent
	LeadID           uuid.UUID `json:"leadId"`
	ResolutionStatus string    `json:"resolutionStatus"`
}

func (e LeadResolved) EventName() string { return "leads.lead.resolved" }

// LeadEscalated is published when an admin escalates a lead.
type LeadEscalated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Reason string    `json:"reason"`
}

func (e LeadEscalated) EventName() string { return "leads.lead.escalated" }
