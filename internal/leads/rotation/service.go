// Package rotation implements round-robin assignment of pooled leads across
// a metro's eligible providers.
package rotation

import (
	"context"
	"errors"
	"sort"
	"time"

	"localpros_backend/internal/events"
	"localpros_backend/internal/leads/audit"
	"localpros_backend/internal/leads/delivery"
	"localpros_backend/internal/leads/domain"
	"localpros_backend/internal/leads/ports"
	"localpros_backend/internal/leads/repository"
	"localpros_backend/platform/logger"

	"github.com/google/uuid"
)

// MsgNoEligibleProviders is stored as the delivery error when a metro has no
// provider that can receive leads.
const MsgNoEligibleProviders = "No verified providers available in metro"

// MsgAssigned is the success message for a completed assignment.
const MsgAssigned = "Lead assigned"

// maxAssignAttempts bounds the compare-and-swap retry loop when concurrent
// assignments race on the same metro's rotation pointer.
const maxAssignAttempts = 5

// Store defines the rotation-pointer and lead-assignment data access the
// assigner needs.
type Store interface {
	GetRotation(ctx context.Context, metroID uuid.UUID) (*repository.MetroRotation, error)
	AssignLeadAndAdvanceRotation(ctx context.Context, metroID, leadID, providerID uuid.UUID, prevProviderID *uuid.UUID, at time.Time) error
	ResetRotation(ctx context.Context, metroID uuid.UUID) error
	UpdateAssignment(ctx context.Context, leadID uuid.UUID, providerID *uuid.UUID, deliveryStatus string, deliveryError *string) error
}

// Deliverer triggers the email notification for an assigned lead.
type Deliverer interface {
	Deliver(ctx context.Context, leadID uuid.UUID) (delivery.Result, error)
}

// AssignResult is the outcome of one assignment attempt. Assigned false with
// a nil error means the metro pool was empty, which is an expected state and
// not a failure.
type AssignResult struct {
	Assigned   bool       `json:"assigned"`
	ProviderID *uuid.UUID `json:"providerId,omitempty"`
	Message    string     `json:"message"`
}

// Assigner picks the next provider in a metro's rotation and binds pooled
// leads to it.
type Assigner struct {
	store     Store
	providers ports.ProviderDirectory
	deliverer Deliverer
	audit     *audit.Recorder
	bus       events.Bus
	log       *logger.Logger
}

// New creates a new rotation assigner.
func New(store Store, providers ports.ProviderDirectory, deliverer Deliverer, auditRec *audit.Recorder, bus events.Bus, log *logger.Logger) *Assigner {
	return &Assigner{
		store:     store,
		providers: providers,
		deliverer: deliverer,
		audit:     auditRec,
		bus:       bus,
		log:       log,
	}
}

// Assign binds the lead to the next eligible provider in its metro's
// rotation, skipping any provider in exclude (used when a decliner must not
// get the same lead back). On success it advances the rotation pointer,
// records the assignment event and triggers delivery; a delivery failure
// does not undo the assignment.
func (a *Assigner) Assign(ctx context.Context, lead repository.Lead, exclude []uuid.UUID, actor domain.Actor) (AssignResult, error) {
	candidates, err := a.providers.ListEligibleProviders(ctx, lead.MetroID)
	if err != nil {
		return AssignResult{}, err
	}
	candidates = filterExcluded(candidates, exclude)

	// The directory contract already orders by id text ascending, but the
	// fairness guarantee belongs to the assigner, so it sorts again.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID.String() < candidates[j].ID.String()
	})

	if len(candidates) == 0 {
		reason := MsgNoEligibleProviders
		if err := a.store.UpdateAssignment(ctx, lead.ID, nil, repository.DeliverySkipped, &reason); err != nil {
			return AssignResult{}, err
		}
		a.audit.Record(ctx, lead.ID, actor.Type, actor.UserID, repository.EventDeliverySkipped, map[string]any{
			"metroId": lead.MetroID.String(),
			"reason":  reason,
		})
		return AssignResult{Assigned: false, Message: reason}, nil
	}

	// The pick and the pointer advance are a compare-and-swap pair: the
	// pointer read here is handed back to the store, which refuses the
	// advance when another assignment moved it first. On a conflict the
	// pointer is re-read and the pick redone, so concurrent assignments in
	// one metro serialize instead of double-claiming a rotation slot.
	var next ports.ProviderInfo
	for attempt := 1; ; attempt++ {
		rot, err := a.store.GetRotation(ctx, lead.MetroID)
		if err != nil {
			return AssignResult{}, err
		}
		next = pickNext(candidates, rot)

		var prev *uuid.UUID
		if rot != nil {
			prev = rot.LastProviderID
		}
		err = a.store.AssignLeadAndAdvanceRotation(ctx, lead.MetroID, lead.ID, next.ID, prev, time.Now())
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrRotationConflict) || attempt >= maxAssignAttempts {
			return AssignResult{}, err
		}
	}

	data := map[string]any{
		"providerId":   next.ID.String(),
		"businessName": next.BusinessName,
		"metroId":      lead.MetroID.String(),
	}
	if len(exclude) > 0 {
		excluded := make([]string, 0, len(exclude))
		for _, id := range exclude {
			excluded = append(excluded, id.String())
		}
		data["excludedProviderIds"] = excluded
	}
	a.audit.Record(ctx, lead.ID, actor.Type, actor.UserID, repository.EventAssignedToProvider, data)

	if a.bus != nil {
		a.bus.Publish(ctx, events.LeadAssigned{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     lead.ID,
			MetroID:    lead.MetroID,
			ProviderID: next.ID,
		})
	}

	if _, err := a.deliverer.Deliver(ctx, lead.ID); err != nil {
		// Assignment stands regardless of what happens to the notification.
		if a.log != nil {
			a.log.DeliveryError(lead.ID.String(), next.ID.String(), err)
		}
	}

	providerID := next.ID
	return AssignResult{Assigned: true, ProviderID: &providerID, Message: MsgAssigned}, nil
}

// ResetRotation clears a metro's rotation pointer so the next assignment
// starts over at the first provider in sorted order.
func (a *Assigner) ResetRotation(ctx context.Context, metroID uuid.UUID) error {
	return a.store.ResetRotation(ctx, metroID)
}

// Rotation exposes a metro's current rotation pointer for admin inspection.
func (a *Assigner) Rotation(ctx context.Context, metroID uuid.UUID) (*repository.MetroRotation, error) {
	return a.store.GetRotation(ctx, metroID)
}

// pickNext finds the provider after the rotation pointer in the sorted
// candidate list. A missing pointer, or a pointer whose provider has left the
// candidate set, restarts at the head.
func pickNext(candidates []ports.ProviderInfo, rot *repository.MetroRotation) ports.ProviderInfo {
	if rot == nil || rot.LastProviderID == nil {
		return candidates[0]
	}
	for i, c := range candidates {
		if c.ID == *rot.LastProviderID {
			return candidates[(i+1)%len(candidates)]
		}
	}
	return candidates[0]
}

func filterExcluded(candidates []ports.ProviderInfo, exclude []uuid.UUID) []ports.ProviderInfo {
	if len(exclude) == 0 {
		return candidates
	}
	out := candidates[:0]
	for _, c := range candidates {
		skip := false
		for _, ex := range exclude {
			if c.ID == ex {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, c)
		}
	}
	return out
}
