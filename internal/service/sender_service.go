package service

import (
	"bytes"
	"fmt"
	"html/template"

	"coachbooking/internal/entities"

	"github.com/cockroachdb/errors"
)

var (
	clientHTML = template.Must(template.New("client").Parse(
		`<p>Hi {{.ClientName}},</p>` +
			`<p>Your session is booked for <strong>{{.Date}} {{.Time}}</strong>. An invite is attached.</p>` +
			`<p>— {{.OperatorName}}</p>`))

	operatorHTML = template.Must(template.New("operator").Parse(
		`<p><strong>Client:</strong> {{.ClientName}} &lt;{{.ClientEmail}}&gt;</p>` +
			`<p><strong>Date:</strong> {{.Date}}</p>` +
			`<p><strong>Time:</strong> {{.Time}}</p>` +
			`<p><strong>Duration:</strong> {{.DurationMinutes}} minutes</p>`))
)

// SenderService composes the confirmation emails for a booking.
type SenderService struct {
	operator entities.Contact
}

func NewSenderService(operator entities.Contact) *SenderService {
	return &SenderService{operator: operator}
}

func (s *SenderService) Operator() entities.Contact {
	return s.operator
}

// ClientConfirmation echoes the date and time exactly as the client sent them.
func (s *SenderService) ClientConfirmation(data entities.BookingEmailData, invite entities.CalendarInvite) (entities.NotificationEmail, error) {
	data.OperatorName = s.operator.Name
	html, err := render(clientHTML, data)
	if err != nil {
		return entities.NotificationEmail{}, err
	}
	return entities.NotificationEmail{
		From:    s.operator,
		To:      entities.Contact{Name: data.ClientName, Email: data.ClientEmail},
		Subject: "Your Coaching Session Confirmation",
		Text: fmt.Sprintf("Hi %s,\n\nYour session is booked for %s %s. An invite is attached.\n\n— %s",
			data.ClientName, data.Date, data.Time, s.operator.Name),
		HTML:        html,
		Attachments: []entities.CalendarInvite{invite},
	}, nil
}

func (s *SenderService) OperatorNotification(data entities.BookingEmailData, invite entities.CalendarInvite) (entities.NotificationEmail, error) {
	data.OperatorName = s.operator.Name
	html, err := render(operatorHTML, data)
	if err != nil {
		return entities.NotificationEmail{}, err
	}
	return entities.NotificationEmail{
		From:    s.operator,
		To:      s.operator,
		Subject: fmt.Sprintf("New booking: %s — %s %s", data.ClientName, data.Date, data.Time),
		Text: fmt.Sprintf("Client: %s <%s>\nDate: %s\nTime: %s\nDuration: %d minutes",
			data.ClientName, data.ClientEmail, data.Date, data.Time, data.DurationMinutes),
		HTML:        html,
		Attachments: []entities.CalendarInvite{invite},
	}, nil
}

// OperatorSMS is the short alert text sent to the operator's phone.
func (s *SenderService) OperatorSMS(data entities.BookingEmailData) string {
	return fmt.Sprintf("New booking: %s %s %s (%d min). Details in your email.",
		data.ClientName, data.Date, data.Time, data.DurationMinutes)
}

func render(tmpl *template.Template, data entities.BookingEmailData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "rendering %s email", tmpl.Name())
	}
	return buf.String(), nil
}
