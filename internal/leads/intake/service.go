// Package intake handles public quote-request submission: it creates leads
// and routes them either to a directly chosen provider or into the metro
// pool for rotation assignment.
package intake

import (
	"context"
	"errors"

	"localpros_backend/internal/events"
	"localpros_backend/internal/leads/delivery"
	"localpros_backend/internal/leads/domain"
	"localpros_backend/internal/leads/ports"
	"localpros_backend/internal/leads/repository"
	"localpros_backend/internal/leads/rotation"
	"localpros_backend/platform/apperr"
	"localpros_backend/platform/phone"

	"github.com/google/uuid"
)

// MsgHeldPending is the delivery error stored when a bound lead's provider
// cannot currently receive leads. The lead stays pending until an operator
// intervenes.
const MsgHeldPending = "Provider is not currently accepting leads"

// Store defines the lead creation access the intake service needs.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
}

// Deliverer notifies a bound lead's provider.
type Deliverer interface {
	Deliver(ctx context.Context, leadID uuid.UUID) (delivery.Result, error)
}

// PoolAssigner routes pooled leads through metro rotation.
type PoolAssigner interface {
	Assign(ctx context.Context, lead repository.Lead, exclude []uuid.UUID, actor domain.Actor) (rotation.AssignResult, error)
}

// SubmitParams is a validated quote request.
type SubmitParams struct {
	// ProviderID binds the lead to a specific listing. Nil means the lead
	// goes to the metro pool.
	ProviderID     *uuid.UUID
	MetroID        *uuid.UUID
	CategoryID     uuid.UUID
	RequesterName  string
	RequesterEmail string
	RequesterPhone string
	Message        string
}

// SubmitResult describes what happened to the new lead.
type SubmitResult struct {
	Lead     repository.Lead
	Assigned bool
	Message  string
}

// Service creates and routes new leads.
type Service struct {
	store     Store
	providers ports.ProviderDirectory
	deliverer Deliverer
	assigner  PoolAssigner
	bus       events.Bus
}

// New creates a new intake service.
func New(store Store, providers ports.ProviderDirectory, deliverer Deliverer, assigner PoolAssigner, bus events.Bus) *Service {
	return &Service{
		store:     store,
		providers: providers,
		deliverer: deliverer,
		assigner:  assigner,
		bus:       bus,
	}
}

// Submit creates a lead from a public quote request.
//
// A bound lead (explicit provider) goes straight to that provider; delivery
// is attempted immediately when the provider is lead-eligible, otherwise the
// lead is held pending with a reason for operators. A pooled lead (metro
// only) is handed to rotation assignment.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (SubmitResult, error) {
	if params.ProviderID == nil && params.MetroID == nil {
		return SubmitResult{}, apperr.Validation("Either a provider or a metro is required")
	}

	var normalizedPhone *string
	if p := phone.NormalizeE164(params.RequesterPhone); p != "" {
		normalizedPhone = &p
	}

	if params.ProviderID != nil {
		return s.submitBound(ctx, params, normalizedPhone)
	}
	return s.submitPooled(ctx, params, normalizedPhone)
}

func (s *Service) submitBound(ctx context.Context, params SubmitParams, normalizedPhone *string) (SubmitResult, error) {
	provider, err := s.providers.GetProvider(ctx, *params.ProviderID)
	if err != nil {
		if errors.Is(err, ports.ErrProviderNotFound) {
			return SubmitResult{}, apperr.NotFound("Provider not found")
		}
		return SubmitResult{}, err
	}

	createParams := repository.CreateLeadParams{
		ProviderID:     &provider.ID,
		MetroID:        provider.MetroID,
		CategoryID:     params.CategoryID,
		RequesterName:  params.RequesterName,
		RequesterEmail: params.RequesterEmail,
		RequesterPhone: normalizedPhone,
		Message:        params.Message,
		DeliveryStatus: repository.DeliveryPending,
	}
	if !provider.LeadEligible {
		held := MsgHeldPending
		createParams.DeliveryError = &held
	}

	lead, err := s.store.Create(ctx, createParams)
	if err != nil {
		return SubmitResult{}, err
	}

	s.publishCreated(ctx, lead)

	if !provider.LeadEligible {
		return SubmitResult{Lead: lead, Assigned: true, Message: MsgHeldPending}, nil
	}

	result, err := s.deliverer.Deliver(ctx, lead.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Lead: lead, Assigned: true, Message: result.Message}, nil
}

func (s *Service) submitPooled(ctx context.Context, params SubmitParams, normalizedPhone *string) (SubmitResult, error) {
	lead, err := s.store.Create(ctx, repository.CreateLeadParams{
		MetroID:        *params.MetroID,
		CategoryID:     params.CategoryID,
		RequesterName:  params.RequesterName,
		RequesterEmail: params.RequesterEmail,
		RequesterPhone: normalizedPhone,
		Message:        params.Message,
		DeliveryStatus: repository.DeliveryPending,
	})
	if err != nil {
		return SubmitResult{}, err
	}

	s.publishCreated(ctx, lead)

	assignResult, err := s.assigner.Assign(ctx, lead, nil, domain.Actor{Type: domain.ActorPublic})
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Lead: lead, Assigned: assignResult.Assigned, Message: assignResult.Message}, nil
}

func (s *Service) publishCreated(ctx context.Context, lead repository.Lead) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		MetroID:    lead.MetroID,
		ProviderID: lead.ProviderID,
	})
}
