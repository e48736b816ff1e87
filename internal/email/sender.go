// Package email provides outbound transactional email for the application.
package email

import (
	"context"
	"time"

	"localpros_backend/platform/config"
)

// LeadNotificationParams carries everything needed to notify a provider of a
// new lead. ReplyTo is the requester's address so the provider can respond
// directly.
type LeadNotificationParams struct {
	To             string
	BCC            string
	ReplyTo        string
	BusinessName   string
	CategoryName   string
	MetroName      string
	RequesterName  string
	RequesterEmail string
	RequesterPhone string
	Message        string
	SubmittedAt    time.Time
}

// DigestItem is one stuck delivery in the operator digest.
type DigestItem struct {
	LeadID         string
	BusinessName   string
	MetroName      string
	DeliveryStatus string
	DeliveryError  string
	CreatedAt      time.Time
}

// Sender delivers application email. Implementations must treat a returned
// error as "this message was not delivered".
type Sender interface {
	SendLeadNotification(ctx context.Context, params LeadNotificationParams) error
	SendPendingDeliveryDigest(ctx context.Context, toEmail string, items []DigestItem) error
	SendOpsAlert(ctx context.Context, toEmail, subject, body string) error
}

// NoopSender is used when email is disabled; every send silently succeeds.
type NoopSender struct{}

func (NoopSender) SendLeadNotification(ctx context.Context, params LeadNotificationParams) error {
	return nil
}

func (NoopSender) SendPendingDeliveryDigest(ctx context.Context, toEmail string, items []DigestItem) error {
	return nil
}

func (NoopSender) SendOpsAlert(ctx context.Context, toEmail, subject, body string) error {
	return nil
}

// NewSender builds the configured Sender. Without SMTP configuration it
// returns a NoopSender; deliveries are then recorded as skipped by the
// delivery service, not crashed.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}
