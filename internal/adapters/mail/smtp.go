// Package mail delivers notifications over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

// SMTPConfig is the account reminders are sent from.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer is a domain.Mailer backed by an SMTP relay. A connection is opened per message.
type SMTPMailer struct {
	cfg  SMTPConfig
	opts []gomail.Option
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp host and from address are required")
	}
	opts := []gomail.Option{gomail.WithTLSPolicy(gomail.TLSOpportunistic)}
	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	return &SMTPMailer{cfg: cfg, opts: opts}, nil
}

// Message builds the MIME message for a notification.
func (m *SMTPMailer) Message(n domain.Notification) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(n.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(n.Subject)
	contentType := gomail.TypeTextPlain
	if n.IsHTML {
		contentType = gomail.TypeTextHTML
	}
	msg.SetBodyString(contentType, n.Body)
	return msg, nil
}

func (m *SMTPMailer) Send(ctx context.Context, n domain.Notification) error {
	msg, err := m.Message(n)
	if err != nil {
		return err
	}
	client, err := gomail.NewClient(m.cfg.Host, m.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("notification sent", "to", n.To, "subject", n.Subject)
	return nil
}
