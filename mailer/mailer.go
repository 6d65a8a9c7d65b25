// Package mailer sends the storefront's transactional emails over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"

	"storefront/config"
	"storefront/models"
)

var ErrNotConfigured = errors.New("email delivery is not configured")

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
	SendOrderConfirmation(ctx context.Context, to, username string, event models.OrderEvent) error
	SendOrderCancellation(ctx context.Context, to, username string, event models.OrderEvent) error
}

// New returns an SMTP mailer, or a Disabled one when credentials are missing.
func New(cfg *config.Config) Mailer {
	if !cfg.MailEnabled() {
		log.Warn().Msg("EMAIL_USERNAME, EMAIL_PASSWORD or EMAIL_FROM missing, emails will not be sent")
		return Disabled{}
	}
	return &SMTPMailer{
		host:     cfg.EmailHost,
		port:     cfg.EmailPort,
		username: cfg.EmailUsername,
		password: cfg.EmailPassword,
		from:     cfg.EmailFrom,
		timeout:  10 * time.Second,
	}
}

type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	data := resetData{ResetURL: resetURL, ExpiresIn: "30 minutes"}
	return m.send(ctx, to, "Password Reset Request - Noir", resetText, resetHTML, data)
}

func (m *SMTPMailer) SendOrderConfirmation(ctx context.Context, to, username string, event models.OrderEvent) error {
	data := orderData{Username: username, Event: event}
	return m.send(ctx, to, fmt.Sprintf("Order #%d Confirmation - Noir", event.OrderID), orderPlacedText, orderPlacedHTML, data)
}

func (m *SMTPMailer) SendOrderCancellation(ctx context.Context, to, username string, event models.OrderEvent) error {
	data := orderData{Username: username, Event: event}
	return m.send(ctx, to, fmt.Sprintf("Order #%d Cancelled - Noir", event.OrderID), orderCancelledText, orderCancelledHTML, data)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject string, text *texttpl.Template, html *htmltpl.Template, data any) error {
	msg, err := buildMessage(m.from, to, subject, text, html, data)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.username),
		mail.WithPassword(m.password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(m.timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		log.Error().Err(err).Str("to", to).Str("subject", subject).Msg("sending email failed")
		return fmt.Errorf("send email: %w", err)
	}
	log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

func buildMessage(from, to, subject string, text *texttpl.Template, html *htmltpl.Template, data any) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	if err := msg.SetBodyTextTemplate(text, data); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	if err := msg.AddAlternativeHTMLTemplate(html, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}
	return msg, nil
}

// Disabled rejects every send with ErrNotConfigured.
type Disabled struct{}

func (Disabled) SendPasswordReset(context.Context, string, string) error { return ErrNotConfigured }

func (Disabled) SendOrderConfirmation(context.Context, string, string, models.OrderEvent) error {
	return ErrNotConfigured
}

func (Disabled) SendOrderCancellation(context.Context, string, string, models.OrderEvent) error {
	return ErrNotConfigured
}
