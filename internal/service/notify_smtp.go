package service

import (
	"context"
	"io"
	"time"

	"coachbooking/internal/entities"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	gomail "gopkg.in/mail.v2"
)

type dialAndSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig holds the outbound relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPMailer sends through an SMTP relay. Port 465 uses implicit TLS,
// anything else upgrades with STARTTLS when offered.
type SMTPMailer struct {
	dialer dialAndSender
	logger *zap.Logger
}

func NewSMTPMailer(cfg SMTPConfig, logger *zap.Logger) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	return &SMTPMailer{dialer: d, logger: logger}
}

func (s *SMTPMailer) Send(ctx context.Context, msg entities.NotificationEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := buildMIMEMessage(msg)

	// DialAndSend has no context; the dialer timeout bounds the goroutine.
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "smtp send to %s", msg.To.Email)
	case err := <-done:
		if err != nil {
			return errors.Wrapf(err, "smtp send to %s", msg.To.Email)
		}
	}
	s.logger.Info("email sent via smtp", zap.String("to", msg.To.Email), zap.String("subject", msg.Subject))
	return nil
}

func buildMIMEMessage(msg entities.NotificationEmail) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.From.Email, msg.From.Name)
	if msg.To.Name != "" {
		m.SetAddressHeader("To", msg.To.Email, msg.To.Name)
	} else {
		m.SetHeader("To", msg.To.Email)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	for _, att := range msg.Attachments {
		content := att.Content
		m.Attach(att.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}),
		)
	}
	return m
}
