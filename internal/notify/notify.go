// Package notify delivers calculation results to the people ordering parts.
package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"github.com/fossawork/fossawork/internal/calculator"
)

// Notifier delivers a calculation result somewhere useful.
type Notifier interface {
	Send(ctx context.Context, result *calculator.Result) error
}

// Nop is used when no notification channel is configured.
type Nop struct{}

// Send discards the result.
func (Nop) Send(ctx context.Context, result *calculator.Result) error {
	_, _ = ctx, result
	return nil
}

// SMTPConfig holds the mail server settings for EmailNotifier.
type SMTPConfig struct {
	Host       string
	Port       int
	From       string
	Password   string
	Recipients []string
}

// EmailNotifier mails the rendered result over SMTP.
type EmailNotifier struct {
	config SMTPConfig
	logger *zap.Logger

	// send is swapped out in tests; email.Send dials the real server.
	send func(addr string, auth smtp.Auth, msg *email.Email) error
}

// NewEmailNotifier constructs an EmailNotifier for the given mail server.
func NewEmailNotifier(cfg SMTPConfig, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{
		config: cfg,
		logger: logger,
		send: func(addr string, auth smtp.Auth, msg *email.Email) error {
			return msg.Send(addr, auth)
		},
	}
}

// Send renders the result as plain text and mails it to the configured
// recipients.
func (n *EmailNotifier) Send(ctx context.Context, result *calculator.Result) error {
	_ = ctx // email.Send does not support contexts

	msg := email.NewEmail()
	msg.From = n.config.From
	msg.To = n.config.Recipients
	msg.Subject = fmt.Sprintf("Filter order: %d filters (%d boxes) across %d jobs",
		result.TotalFilters, result.TotalBoxes, result.Metadata.JobCount)
	msg.Text = []byte(RenderText(result))

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	auth := smtp.PlainAuth("", n.config.From, n.config.Password, n.config.Host)
	if err := n.send(addr, auth, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("notification sent",
		zap.Int("recipients", len(n.config.Recipients)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return nil
}
