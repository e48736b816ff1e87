package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection
// via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

type sendOptions struct {
	bcc       string
	replyTo   string
	plainText bool
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, content string, opts sendOptions) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	if opts.bcc != "" {
		if err := msg.Bcc(opts.bcc); err != nil {
			return fmt.Errorf("smtp bcc: %w", err)
		}
	}
	if opts.replyTo != "" {
		if err := msg.ReplyTo(opts.replyTo); err != nil {
			return fmt.Errorf("smtp reply-to: %w", err)
		}
	}
	msg.Subject(subject)
	bodyType := gomail.TypeTextHTML
	if opts.plainText {
		bodyType = gomail.TypeTextPlain
	}
	msg.SetBodyString(bodyType, content)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendLeadNotification(ctx context.Context, params LeadNotificationParams) error {
	subject := fmt.Sprintf(subjectLeadNotificationFmt, params.BusinessName, params.CategoryName, params.MetroName)
	content, err := renderEmailTemplate("lead_notification.html", leadNotificationEmailData{
		BusinessName:   params.BusinessName,
		CategoryName:   params.CategoryName,
		MetroName:      params.MetroName,
		RequesterName:  params.RequesterName,
		RequesterEmail: params.RequesterEmail,
		RequesterPhone: params.RequesterPhone,
		Message:        params.Message,
		SubmittedAt:    params.SubmittedAt.Format("Jan 2, 2006 15:04 MST"),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, params.To, subject, content, sendOptions{
		bcc:     params.BCC,
		replyTo: params.ReplyTo,
	})
}

func (s *SMTPSender) SendPendingDeliveryDigest(ctx context.Context, toEmail string, items []DigestItem) error {
	subject := fmt.Sprintf(subjectPendingDigestFmt, len(items))
	content, err := renderEmailTemplate("pending_digest.html", pendingDigestEmailData{
		Count: len(items),
		Items: items,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content, sendOptions{})
}

// SendOpsAlert sends a plain-text operational alert. No template: these are
// terse machine-to-operator messages, not customer-facing mail.
func (s *SMTPSender) SendOpsAlert(ctx context.Context, toEmail, subject, body string) error {
	return s.send(ctx, toEmail, subject, body, sendOptions{plainText: true})
}

// Compile-time check that SMTPSender implements Sender.
var _ Sender = (*SMTPSender)(nil)
