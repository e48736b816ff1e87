// Package notification turns domain events into operator alerts. It is a
// pure bus consumer: it exposes no routes and nothing depends on it.
package notification

import (
	"context"
	"fmt"

	"localpros_backend/internal/email"
	"localpros_backend/internal/events"
	"localpros_backend/platform/config"
	"localpros_backend/platform/logger"
)

// Module emails the ops address when leads need operator attention.
type Module struct {
	sender email.Sender
	cfg    config.EmailConfig
	log    *logger.Logger
}

// NewModule creates the notification module.
func NewModule(sender email.Sender, cfg config.EmailConfig, log *logger.Logger) *Module {
	return &Module{sender: sender, cfg: cfg, log: log}
}

// Register subscribes the module's handlers on the event bus.
func (m *Module) Register(bus events.Bus) {
	bus.Subscribe(events.LeadDeliveryFailed{}.EventName(), events.HandlerFunc(m.onDeliveryFailed))
	bus.Subscribe(events.LeadEscalated{}.EventName(), events.HandlerFunc(m.onLeadEscalated))
}

func (m *Module) onDeliveryFailed(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.LeadDeliveryFailed)
	if !ok {
		return nil
	}

	subject := fmt.Sprintf("Lead delivery failed: %s", evt.LeadID)
	body := fmt.Sprintf("Delivery for lead %s failed: %s\n", evt.LeadID, evt.Reason)
	if evt.ProviderID != nil {
		body += fmt.Sprintf("Assigned provider: %s\n", *evt.ProviderID)
	}
	return m.alert(ctx, subject, body)
}

func (m *Module) onLeadEscalated(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.LeadEscalated)
	if !ok {
		return nil
	}

	subject := fmt.Sprintf("Lead escalated: %s", evt.LeadID)
	body := fmt.Sprintf("Lead %s was escalated for admin review: %s\n", evt.LeadID, evt.Reason)
	return m.alert(ctx, subject, body)
}

// alert emails the ops address. Without one configured the alert is logged
// and dropped; alerting must never fail the operation that raised the event.
func (m *Module) alert(ctx context.Context, subject, body string) error {
	to := m.cfg.GetOpsAddress()
	if to == "" {
		if m.log != nil {
			m.log.Warn("ops alert dropped, OPS_ADDRESS not configured", "subject", subject)
		}
		return nil
	}
	return m.sender.SendOpsAlert(ctx, to, subject, body)
}
