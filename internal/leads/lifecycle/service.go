// Package lifecycle implements the lead lifecycle state machine: who may
// move a lead, which moves are legal, and the audit trail each move leaves.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"localpros_backend/internal/events"
	"localpros_backend/internal/leads/audit"
	"localpros_backend/internal/leads/delivery"
	"localpros_backend/internal/leads/domain"
	"localpros_backend/internal/leads/ports"
	"localpros_backend/internal/leads/repository"
	"localpros_backend/internal/leads/rotation"
	"localpros_backend/platform/apperr"
	"localpros_backend/platform/logger"

	"github.com/google/uuid"
)

// Store defines the lead data access the controller needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]repository.Lead, error)
	SetViewed(ctx context.Context, leadID uuid.UUID, at time.Time) error
	SetContacted(ctx context.Context, leadID uuid.UUID, at time.Time) error
	SetResolved(ctx context.Context, leadID uuid.UUID, at time.Time, resolutionStatus string) error
	SetEscalated(ctx context.Context, leadID uuid.UUID, at time.Time, reason string) error
	SetDeclined(ctx context.Context, params repository.DeclineParams) error
	SetBoardFields(ctx context.Context, leadID uuid.UUID, followUpAt *time.Time, nextAction *string) error
	UpdateAssignment(ctx context.Context, leadID uuid.UUID, providerID *uuid.UUID, deliveryStatus string, deliveryError *string) error
	ListLeadEvents(ctx context.Context, leadID uuid.UUID) ([]repository.LeadEvent, error)
}

// Reassigner re-runs rotation assignment after a decline or a pool return.
type Reassigner interface {
	Assign(ctx context.Context, lead repository.Lead, exclude []uuid.UUID, actor domain.Actor) (rotation.AssignResult, error)
}

// Deliverer triggers the email notification for a directly reassigned lead.
type Deliverer interface {
	Deliver(ctx context.Context, leadID uuid.UUID) (delivery.Result, error)
}

// Controller guards and applies lead lifecycle transitions.
type Controller struct {
	store     Store
	providers ports.ProviderDirectory
	assigner  Reassigner
	deliverer Deliverer
	audit     *audit.Recorder
	bus       events.Bus
	log       *logger.Logger
}

// New creates a new lifecycle controller.
func New(store Store, providers ports.ProviderDirectory, assigner Reassigner, deliverer Deliverer, auditRec *audit.Recorder, bus events.Bus, log *logger.Logger) *Controller {
	return &Controller{
		store:     store,
		providers: providers,
		assigner:  assigner,
		deliverer: deliverer,
		audit:     auditRec,
		bus:       bus,
		log:       log,
	}
}

// authorize loads the lead and checks the actor may act on it. Admins may act
// on any lead; a provider actor must be linked to the lead's currently
// assigned provider. The denial message is deliberately uniform so it leaks
// nothing about other providers' leads.
func (c *Controller) authorize(ctx context.Context, leadID uuid.UUID, actor domain.Actor) (repository.Lead, error) {
	lead, err := c.store.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("Lead not found")
		}
		return repository.Lead{}, err
	}

	if actor.IsAdmin() {
		return lead, nil
	}

	if actor.IsProvider() && actor.UserID != nil {
		provider, err := c.providers.FindProviderForUser(ctx, *actor.UserID)
		if err != nil {
			if errors.Is(err, ports.ErrProviderNotFound) {
				return repository.Lead{}, apperr.Forbidden("Not authorized")
			}
			return repository.Lead{}, err
		}
		if lead.ProviderID != nil && *lead.ProviderID == provider.ID {
			return lead, nil
		}
	}

	return repository.Lead{}, apperr.Forbidden("Not authorized")
}

// checkTransition applies the role-specific transition rule.
func checkTransition(actor domain.Actor, from, to domain.State) error {
	allowed := false
	if actor.IsAdmin() {
		allowed = domain.CanAdminTransition(from, to)
	} else {
		allowed = domain.CanProviderTransition(from, to)
	}
	if !allowed {
		return apperr.Validation("Invalid lifecycle transition").WithDetails(map[string]string{
			"from": string(from),
			"to":   string(to),
		})
	}
	return nil
}

// Get returns the lead when the actor is allowed to see it.
func (c *Controller) Get(ctx context.Context, leadID uuid.UUID, actor domain.Actor) (repository.Lead, error) {
	return c.authorize(ctx, leadID, actor)
}

// ListForProvider returns the leads assigned to the acting provider's
// business, newest first.
func (c *Controller) ListForProvider(ctx context.Context, actor domain.Actor) ([]repository.Lead, error) {
	if !actor.IsProvider() || actor.UserID == nil {
		return nil, apperr.Forbidden("Not authorized")
	}
	provider, err := c.providers.FindProviderForUser(ctx, *actor.UserID)
	if err != nil {
		if errors.Is(err, ports.ErrProviderNotFound) {
			return nil, apperr.Forbidden("Not authorized")
		}
		return nil, err
	}
	return c.store.ListByProvider(ctx, provider.ID)
}

// MarkViewed stamps the first view of a lead. Repeated calls are idempotent:
// the original timestamp stands and no duplicate event is recorded.
func (c *Controller) MarkViewed(ctx context.Context, leadID uuid.UUID, actor domain.Actor) (repository.Lead, error) {
	lead, err := c.authorize(ctx, leadID, actor)
	if err != nil {
		return repository.Lead{}, err
	}

	if lead.ViewedAt != nil {
		return lead, nil
	}

	from := lead.LifecycleState()
	if err := checkTransition(actor, from, domain.StateViewed); err != nil {
		return repository.Lead{}, err
	}

	if err := c.store.SetViewed(ctx, leadID, time.Now()); err != nil {
		return repository.Lead{}, err
	}
	c.audit.Record(ctx, leadID, actor.Type, actor.UserID, repository.EventStatusUpdated, map[string]any{
		"from": string(from),
		"to":   string(domain.StateViewed),
	})

	return c.store.GetByID(ctx, leadID)
}

// MarkContacted stamps a contact attempt. Repeat contact from the contacted
// state refreshes the timestamp.
func (c *Controller) MarkContacted(ctx context.Context, leadID uuid.UUID, actor domain.Actor) (repository.Lead, error) {
	lead, err := c.authorize(ctx, leadID, actor)
	if err != nil {
		return repository.Lead{}, err
	}

	from := lead.LifecycleState()
	if err := checkTransition(actor, from, domain.StateContacted); err != nil {
		return repository.Lead{}, err
	}

	if err := c.store.SetContacted(ctx, leadID, time.Now()); err != nil {
		return repository.Lead{}, err
	}
	c.audit.Record(ctx, leadID, actor.Type, actor.UserID, repository.EventStatusUpdated, map[string]any{
		"from": string(from),
		"to":   string(domain.StateContacted),
	})

	return c.store.GetByID(ctx, leadID)
}

// Resolve moves the lead to its terminal resolved state. An empty status
// defaults to closed.
func (c *Controller) Resolve(ctx context.Context, leadID uuid.UUID, actor domain.Actor, resolutionStatus string) (repository.Lead, error) {
	lead, err := c.authorize(ctx, leadID, actor)
	if err != nil {
		return repository.Lead{}, err
	}

	if resolutionStatus == "" {
		resolutionStatus = domain.DefaultResolution
	}
	if !domain.IsValidResolution(resolutionStatus) {
		return repository.Lead{}, apperr.Validation("Invalid resolution status")
	}

	from := lead.LifecycleState()
	if err := checkTransition(actor, from, domain.StateResolved); err != nil {
		return repository.Lead{}, err
	}

	if err := c.store.SetResolved(ctx, leadID, time.Now(), resolutionStatus); err != nil {
		return repository.Lead{}, err
	}
	c.audit.Record(ctx, leadID, actor.Type, actor.UserID, repository.EventStatusUpdated, map[string]any{
		"from":             string(from),
		"to":               string(domain.StateResolved),
		"resolutionStatus": resolutionStatus,
	})
	if c.bus != nil {
		c.bus.Publish(ctx, events.LeadResolved{
			BaseEvent:        events.NewBaseEvent(),
			LeadID:           leadID,
			ResolutionStatus: resolutionStatus,
		})
	}

	return c.store.GetByID(ctx, leadID)
}

// Escalate flags a lead for admin attention. Only admins may escalate; the
// escalated state is categorically unreachable for provider actors.
func (c *Controller) Escalate(ctx context.Context, leadID uuid.UUID, actor domain.Actor, reason string) (repository.Lead, error) {
	if !actor.IsAdmin() {
		return repository.Lead{}, apperr.Forbidden("Not authorized")
	}

	lead, err := c.authorize(ctx, leadID, actor)
	if err != nil {
		return repository.Lead{}, err
	}

	from := lead.LifecycleState()
	if err := checkTransition(actor, from, domain.StateEscalated); err != nil {
		return repository.Lead{}, err
	}

	if err := c.store.SetEscalated(ctx, leadID, time.Now(), reason); err != nil {
		return repository.Lead{}, err
	}
	c.audit.Record(ctx, leadID, actor.Type, actor.UserID, repository.EventStatusUpdated, map[string]any{
		"from":   string(from),
		"to":     string(domain.StateEscalated),
		"reason": reason,
	})
	if c.bus != nil {
		c.bus.Publish(ctx, events.LeadEscalated{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
			Reason:    reason,
		})
	}

	return c.store.GetByID(ctx, leadID)
}

// DeclineResult reports what happened to a declined lead: the decline itself
// plus the outcome of the automatic reassignment.
type DeclineResult struct {
	Lead       repository.Lead
	Reassigned rotation.AssignResult
}

// Decline lets the assigned provider reject a lead. The lead returns to the
// metro pool and is immediately reassigned, with the declining provider
// excluded from that one rotation pass.
func (c *Controller) Decline(ctx context.Context, leadID uuid.UUID, actor domain.Actor, reason, note string) (DeclineResult, error) {
	if !actor.IsProvider() {
		return DeclineResult{}, apperr.Forbidden("Not authorized")
	}

	lead, err := c.authorize(ctx, leadID, actor)
	if err != nil {
		return DeclineResult{}, err
	}

	if reason == "" {
		return DeclineResult{}, apperr.Validation("Decline reason is required")
	}
	if lead.LifecycleState() == domain.StateResolved {
		return DeclineResult{}, apperr.Validation("Resolved leads cannot be declined")
	}

	decliningProviderID := *lead.ProviderID
	formatted := domain.FormatDeclineReason(reason, note)

	if err := c.store.SetDeclined(ctx, repository.DeclineParams{
		LeadID:               leadID,
		DeclinedAt:           time.Now(),
		DeclineReason:        formatted,
		DeclinedByProviderID: decliningProviderID,
	}); err != nil {
		return DeclineResult{}, err
	}

	// Event order matters for the timeline: the decline, then the pool
	// return, then whatever the reassignment records.
	declineData := map[string]any{
		"providerId": decliningProviderID.String(),
		"reason":     reason,
	}
	if note != "" {
		declineData["note"] = note
	}
	c.audit.Record(ctx, leadID, actor.Type, actor.UserID, repository.EventProviderDeclined, declineData)
	c.audit.Record(ctx, leadID, domain.ActorSystem, nil, repository.EventReturnedToPool, map[string]any{
		"declinedBy": decliningProviderID.String(),
		"metroId":    lead.MetroID.String(),
	})
	if c.bus != nil {
		c.bus.Publish(ctx, events.LeadDeclined{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     leadID,
			ProviderID: decliningProviderID,
			Reason:     formatted,
		})
	}

	pooled, err := c.store.GetByID(ctx, leadID)
	if err != nil {
		return DeclineResult{}, err
	}

	assignResult, err := c.assigner.Assign(ctx, pooled, []uuid.UUID{decliningProviderID}, domain.SystemActor)
	if err != nil {
		return DeclineResult{}, err
	}

	final, err := c.store.GetByID(ctx, leadID)
	if err != nil {
		return DeclineResult{}, err
	}
	return DeclineResult{Lead: final, Reassigned: assignResult}, nil
}

// Reassign directs a lead to an admin-chosen provider, admin-only. This is a
// directed move, not a pool assignment: the metro rotation pointer is left
// untouched so pool fairness bookkeeping is not perturbed.
func (c *Controller) Reassign(ctx context.Context, leadID, providerID uuid.UUID, actor domain.Actor) (repository.Lead, error) {
	if !actor.IsAdmin() {
		return repository.Lead{}, apperr.Forbidden("Not authorized")
	}

	lead, err := c.authorize(ctx, leadID, actor)
	if err != nil {
		return repository.Lead{}, err
	}
	if lead.LifecycleState() == domain.StateResolved {
		return repository.Lead{}, apperr.Validation("Resolved leads cannot be reassigned")
	}
	if lead.ProviderID != nil && *lead.ProviderID == providerID {
		return repository.Lead{}, apperr.Validation("Lead is already assigned to that provider")
	}

	target, err := c.providers.GetProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, ports.ErrProviderNotFound) {
			return repository.Lead{}, apperr.NotFound("Provider not found")
		}
		return repository.Lead{}, err
	}

	targetID := target.ID
	if err := c.store.UpdateAssignment(ctx, leadID, &targetID, repository.DeliveryPending, nil); err != nil {
		return repository.Lead{}, err
	}

	data := map[string]any{
		"providerId":   target.ID.String(),
		"businessName": target.BusinessName,
	}
	if lead.ProviderID != nil {
		data["previousProviderId"] = lead.ProviderID.String()
	}
	c.audit.Record(ctx, leadID, actor.Type, actor.UserID, repository.EventAssignedToProvider, data)
	if c.bus != nil {
		c.bus.Publish(ctx, events.LeadAssigned{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     leadID,
			MetroID:    lead.MetroID,
			ProviderID: target.ID,
		})
	}

	if _, err := c.deliverer.Deliver(ctx, leadID); err != nil {
		// Assignment stands regardless of what happens to the notification.
		if c.log != nil {
			c.log.DeliveryError(leadID.String(), target.ID.String(), err)
		}
	}

	return c.store.GetByID(ctx, leadID)
}

// ReturnToPool detaches a lead from its provider and re-runs rotation with no
// exclusions, admin-only.
func (c *Controller) ReturnToPool(ctx context.Context, leadID uuid.UUID, actor domain.Actor) (rotation.AssignResult, error) {
	if !actor.IsAdmin() {
		return rotation.AssignResult{}, apperr.Forbidden("Not authorized")
	}

	lead, err := c.authorize(ctx, leadID, actor)
	if err != nil {
		return rotation.AssignResult{}, err
	}
	if lead.LifecycleState() == domain.StateResolved {
		return rotation.AssignResult{}, apperr.Validation("Resolved leads cannot be returned to the pool")
	}

	if err := c.store.UpdateAssignment(ctx, leadID, nil, repository.DeliveryPending, nil); err != nil {
		return rotation.AssignResult{}, err
	}
	c.audit.Record(ctx, leadID, actor.Type, actor.UserID, repository.EventReturnedToPool, nil)

	pooled, err := c.store.GetByID(ctx, leadID)
	if err != nil {
		return rotation.AssignResult{}, err
	}
	return c.assigner.Assign(ctx, pooled, nil, domain.SystemActor)
}

// SetBoardFields updates the admin planning fields (follow-up date, next
// action) and records the board move.
func (c *Controller) SetBoardFields(ctx context.Context, leadID uuid.UUID, actor domain.Actor, followUpAt *time.Time, nextAction *string) (repository.Lead, error) {
	if _, err := c.authorize(ctx, leadID, actor); err != nil {
		return repository.Lead{}, err
	}

	if err := c.store.SetBoardFields(ctx, leadID, followUpAt, nextAction); err != nil {
		return repository.Lead{}, err
	}
	data := map[string]any{}
	if followUpAt != nil {
		data["followUpAt"] = followUpAt.Format(time.RFC3339)
	}
	if nextAction != nil {
		data["nextAction"] = *nextAction
	}
	c.audit.Record(ctx, leadID, actor.Type, actor.UserID, repository.EventMovedOnBoard, data)

	return c.store.GetByID(ctx, leadID)
}

// Timeline returns the lead's full event log, newest first.
func (c *Controller) Timeline(ctx context.Context, leadID uuid.UUID, actor domain.Actor) ([]repository.LeadEvent, error) {
	if _, err := c.authorize(ctx, leadID, actor); err != nil {
		return nil, err
	}
	return c.store.ListLeadEvents(ctx, leadID)
}
