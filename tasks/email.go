package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/mtask/mtask/task"
)

// TaskSendEmail is the registered name of the email delivery task.
const TaskSendEmail = "send_email"

// EmailPayload describes one outbound email.
type EmailPayload struct {
	TenantID string `json:"tenant_id"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// EmailResult records a completed delivery.
type EmailResult struct {
	Status string `json:"status"`
	To     string `json:"to"`
}

// Sender delivers one email message.
type Sender interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	Addr string
	Auth smtp.Auth
}

// Send delivers the message via smtp.SendMail.
func (s SMTPSender) Send(_ context.Context, from, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(s.Addr, s.Auth, from, []string{to}, []byte(msg))
}

// Email sends notification emails through a Sender.
type Email struct {
	sender Sender
	from   string
	logger *slog.Logger
}

// NewEmail creates the email task body. from is the envelope sender
// used for every message.
func NewEmail(sender Sender, from string, logger *slog.Logger) *Email {
	return &Email{sender: sender, from: from, logger: logger}
}

// Definition returns the typed task definition for registration.
func (e *Email) Definition() *task.Definition[EmailPayload] {
	return task.NewDefinition(TaskSendEmail, e.Run)
}

// Run delivers one email. A missing recipient is a bad payload; any
// delivery error is treated as transient and retried.
func (e *Email) Run(ctx context.Context, p EmailPayload) task.Outcome {
	if p.To == "" {
		return task.Fail(fmt.Errorf("send_email: empty recipient"))
	}
	if err := e.sender.Send(ctx, e.from, p.To, p.Subject, p.Body); err != nil {
		return task.Retry(fmt.Errorf("send_email: deliver to %s: %w", p.To, err))
	}
	e.logger.Info("email delivered",
		slog.String("tenant_id", p.TenantID),
		slog.String("to", p.To),
	)
	return task.Success(EmailResult{Status: "sent", To: p.To})
}
