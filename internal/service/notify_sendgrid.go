package service

import (
	"context"
	"encoding/base64"

	"coachbooking/internal/entities"

	"github.com/cockroachdb/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer sends through the SendGrid v3 API.
type SendGridMailer struct {
	client sendGridClient
	logger *zap.Logger
}

func NewSendGridMailer(apiKey string, logger *zap.Logger) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), logger: logger}
}

func (s *SendGridMailer) Send(ctx context.Context, msg entities.NotificationEmail) error {
	from := sgmail.NewEmail(msg.From.Name, msg.From.Email)
	to := sgmail.NewEmail(msg.To.Name, msg.To.Email)
	html := msg.HTML
	if html == "" {
		html = msg.Text
	}
	message := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Text, html)
	for _, att := range msg.Attachments {
		a := sgmail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		a.SetType(att.ContentType)
		a.SetFilename(att.Filename)
		a.SetDisposition("attachment")
		message.AddAttachment(a)
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return errors.Wrapf(err, "sendgrid send to %s", msg.To.Email)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		s.logger.Error("sendgrid returned error status",
			zap.Int("status", response.StatusCode),
			zap.String("body", response.Body),
			zap.String("to", msg.To.Email))
		return errors.Newf("sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid",
		zap.String("to", msg.To.Email),
		zap.String("subject", msg.Subject),
		zap.Int("status", response.StatusCode))
	return nil
}

// StubMailer logs instead of sending. Used when no relay is configured.
type StubMailer struct {
	logger *zap.Logger
}

func NewStubMailer(logger *zap.Logger) *StubMailer {
	return &StubMailer{logger: logger}
}

func (s *StubMailer) Send(ctx context.Context, msg entities.NotificationEmail) error {
	s.logger.Warn("stub mailer: email not sent",
		zap.String("to", msg.To.Email),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}
