// Package delivery notifies providers of their assigned leads by email and
// records the outcome of every attempt.
package delivery

import (
	"context"
	"errors"
	"time"

	"localpros_backend/internal/email"
	"localpros_backend/internal/events"
	"localpros_backend/internal/leads/audit"
	"localpros_backend/internal/leads/domain"
	"localpros_backend/internal/leads/ports"
	"localpros_backend/internal/leads/repository"
	"localpros_backend/platform/config"
	"localpros_backend/platform/logger"

	"github.com/google/uuid"
)

// User-visible outcome messages.
const (
	MsgLeadNotFound       = "Lead not found"
	MsgNoProviderAssigned = "Lead has no assigned provider"
	MsgProviderLoadFailed = "Failed to load assigned provider"
	MsgNoRecipient        = "No delivery email available"
	MsgNoTransport        = "Missing delivery configuration"
	MsgDelivered          = "Lead delivered"
)

// LeadStore defines the data access interface needed by the delivery service.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	MarkDelivered(ctx context.Context, leadID uuid.UUID, at time.Time) error
	MarkDeliveryFailed(ctx context.Context, leadID uuid.UUID, errText string) error
	MarkDeliverySkipped(ctx context.Context, leadID uuid.UUID, reason string) error
	GetMetroName(ctx context.Context, metroID uuid.UUID) (string, error)
	GetCategoryName(ctx context.Context, categoryID uuid.UUID) (string, error)
}

// Result is the caller-facing delivery outcome.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Service attempts lead deliveries. Deliver is safe to call repeatedly: a
// re-trigger simply re-sends and re-stamps the delivery status, last write
// wins.
type Service struct {
	leads     LeadStore
	providers ports.ProviderDirectory
	sender    email.Sender
	cfg       config.EmailConfig
	audit     *audit.Recorder
	bus       events.Bus
	log       *logger.Logger
}

// New creates a new delivery service.
func New(leads LeadStore, providers ports.ProviderDirectory, sender email.Sender, cfg config.EmailConfig, auditRec *audit.Recorder, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:     leads,
		providers: providers,
		sender:    sender,
		cfg:       cfg,
		audit:     auditRec,
		bus:       bus,
		log:       log,
	}
}

// Deliver attempts to notify the lead's assigned provider by email.
// Expected failures (missing recipient, unconfigured transport, transport
// error) come back as Result{OK: false} with the lead's delivery status
// updated accordingly; the error return is reserved for storage failures.
func (s *Service) Deliver(ctx context.Context, leadID uuid.UUID) (Result, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result{OK: false, Message: MsgLeadNotFound}, nil
		}
		return Result{}, err
	}

	if lead.ProviderID == nil {
		return Result{OK: false, Message: MsgNoProviderAssigned}, nil
	}
	providerID := *lead.ProviderID

	provider, err := s.providers.GetProvider(ctx, providerID)
	if err != nil {
		errText := repository.TruncateError(err.Error(), repository.ErrorTextMaxLen)
		if markErr := s.leads.MarkDeliveryFailed(ctx, lead.ID, errText); markErr != nil {
			return Result{}, markErr
		}
		s.audit.Record(ctx, lead.ID, domain.ActorSystem, nil, repository.EventDeliveryFailed, map[string]any{
			"providerId": providerID.String(),
			"error":      errText,
		})
		return Result{OK: false, Message: MsgProviderLoadFailed}, nil
	}

	recipient := ""
	if provider.PublicEmail != nil {
		recipient = *provider.PublicEmail
	}
	if recipient == "" {
		recipient = s.cfg.GetLeadFallbackAddress()
	}
	if recipient == "" {
		return s.skip(ctx, lead.ID, providerID, MsgNoRecipient)
	}

	if !s.cfg.GetEmailEnabled() {
		return s.skip(ctx, lead.ID, providerID, MsgNoTransport)
	}

	s.audit.Record(ctx, lead.ID, domain.ActorSystem, nil, repository.EventDeliveryAttempted, map[string]any{
		"providerId": providerID.String(),
		"recipient":  recipient,
	})

	params := email.LeadNotificationParams{
		To:             recipient,
		BCC:            s.cfg.GetLeadBCCAddress(),
		ReplyTo:        lead.RequesterEmail,
		BusinessName:   provider.BusinessName,
		CategoryName:   s.lookupName(ctx, "category", lead.CategoryID, s.leads.GetCategoryName),
		MetroName:      s.lookupName(ctx, "metro", lead.MetroID, s.leads.GetMetroName),
		RequesterName:  lead.RequesterName,
		RequesterEmail: lead.RequesterEmail,
		Message:        lead.Message,
		SubmittedAt:    lead.CreatedAt,
	}
	if lead.RequesterPhone != nil {
		params.RequesterPhone = *lead.RequesterPhone
	}

	if sendErr := s.sender.SendLeadNotification(ctx, params); sendErr != nil {
		errText := repository.TruncateError(sendErr.Error(), repository.ErrorTextMaxLen)
		if markErr := s.leads.MarkDeliveryFailed(ctx, lead.ID, errText); markErr != nil {
			return Result{}, markErr
		}
		s.audit.Record(ctx, lead.ID, domain.ActorSystem, nil, repository.EventDeliveryFailed, map[string]any{
			"providerId": providerID.String(),
			"error":      errText,
		})
		if s.log != nil {
			s.log.DeliveryError(lead.ID.String(), providerID.String(), sendErr)
		}
		if s.bus != nil {
			s.bus.Publish(ctx, events.LeadDeliveryFailed{
				BaseEvent:  events.NewBaseEvent(),
				LeadID:     lead.ID,
				ProviderID: &providerID,
				Reason:     errText,
			})
		}
		return Result{OK: false, Message: errText}, nil
	}

	if err := s.leads.MarkDelivered(ctx, lead.ID, time.Now()); err != nil {
		return Result{}, err
	}
	s.audit.Record(ctx, lead.ID, domain.ActorSystem, nil, repository.EventDeliverySucceeded, map[string]any{
		"providerId": providerID.String(),
		"recipient":  recipient,
	})

	return Result{OK: true, Message: MsgDelivered}, nil
}

// skip marks the lead skipped with the reason and records the event. A skip
// is a recoverable outcome: delivery can be re-triggered once configuration
// or recipient data is fixed.
func (s *Service) skip(ctx context.Context, leadID, providerID uuid.UUID, reason string) (Result, error) {
	if err := s.leads.MarkDeliverySkipped(ctx, leadID, reason); err != nil {
		return Result{}, err
	}
	s.audit.Record(ctx, leadID, domain.ActorSystem, nil, repository.EventDeliverySkipped, map[string]any{
		"providerId": providerID.String(),
		"reason":     reason,
	})
	return Result{OK: false, Message: reason}, nil
}

// lookupName resolves a reference-table display name, degrading to empty on
// lookup failure rather than failing the delivery.
func (s *Service) lookupName(ctx context.Context, kind string, id uuid.UUID, fn func(context.Context, uuid.UUID) (string, error)) string {
	name, err := fn(ctx, id)
	if err != nil {
		if s.log != nil {
			s.log.Warn("reference lookup failed", "kind", kind, "id", id.String(), "error", err)
		}
		return ""
	}
	return name
}
