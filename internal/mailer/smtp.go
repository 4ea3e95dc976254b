package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/MrEthical07/authsvc"
)

// SMTPConfig describes the relay used by [SMTPMailer].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// The zero TLSPolicy is mail.TLSMandatory.
	TLSPolicy mail.TLSPolicy
	Timeout   time.Duration
}

// SMTPMailer delivers messages through an SMTP relay. A new connection is
// dialed per message.
type SMTPMailer struct {
	from    string
	host    string
	options []mail.Option
	log     *slog.Logger
}

// NewSMTP validates cfg and returns a mailer. No connection is made here.
func NewSMTP(cfg SMTPConfig, log *slog.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("mailer: smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mailer: from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = mail.DefaultPortTLS
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(cfg.TLSPolicy),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	// Fail on bad options at startup rather than on the first send.
	if _, err := mail.NewClient(cfg.Host, opts...); err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}

	return &SMTPMailer{
		from:    cfg.From,
		host:    cfg.Host,
		options: opts,
		log:     log.With("component", "mailer", "driver", "smtp"),
	}, nil
}

// Send implements authsvc.Mailer. Failures wrap [authsvc.ErrMailUnavailable].
func (m *SMTPMailer) Send(ctx context.Context, msg authsvc.Message) error {
	const op = "mailer.Send"

	out, err := m.build(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	client, err := mail.NewClient(m.host, m.options...)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, authsvc.ErrMailUnavailable, err)
	}

	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		m.log.WarnContext(ctx, "smtp delivery failed", "to", msg.To, "error", err.Error())
		return fmt.Errorf("%s: %w: %v", op, authsvc.ErrMailUnavailable, err)
	}
	return nil
}

func (m *SMTPMailer) build(msg authsvc.Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	return out, nil
}
