package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"coachbooking/internal/entities"

	ics "github.com/arran4/golang-ical"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const (
	calendarName = "Coaching Sessions"
	busyStatus   = "BUSY"
)

// inviteNamespace scopes UIDs so the same checkout session always maps to the
// same calendar entry.
var inviteNamespace = uuid.MustParse("6f1c1d2e-4a1b-4bde-9d64-1b4f6f0c9a10")

type InviteService struct {
	productID string
	now       func() time.Time
}

func NewInviteService(productID string) *InviteService {
	return &InviteService{productID: productID, now: time.Now}
}

// Build renders a single-event iCalendar REQUEST for the booking.
func (s *InviteService) Build(ctx context.Context, ev entities.InviteEvent) (*entities.CalendarInvite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateInviteEvent(ev); err != nil {
		return nil, err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId(s.productID)
	cal.SetXWRCalName(calendarName)

	event := cal.AddEvent(uuid.NewSHA1(inviteNamespace, []byte(ev.Reference)).String() + "@" + strings.ToLower(s.productID))
	event.SetDtStampTime(s.now().UTC())
	event.SetStartAt(ev.Start.UTC())
	event.SetProperty(ics.ComponentProperty("DURATION"), fmt.Sprintf("PT%dM", ev.DurationMinutes))
	event.SetSummary(ev.Title)
	if ev.Description != "" {
		event.SetDescription(ev.Description)
	}
	event.SetProperty(ics.ComponentPropertyOrganizer, "mailto:"+ev.Organizer.Email, ics.WithCN(displayName(ev.Organizer.Name)))
	event.AddProperty(ics.ComponentPropertyAttendee, "mailto:"+ev.Attendee.Email,
		ics.WithCN(displayName(ev.Attendee.Name)),
		ics.ParticipationStatusAccepted,
		ics.ParticipationRoleReqParticipant,
		ics.WithRSVP(true),
	)
	event.SetStatus(ics.ObjectStatusConfirmed)
	event.SetProperty(ics.ComponentProperty("TRANSP"), "OPAQUE")
	event.SetProperty(ics.ComponentProperty("X-MICROSOFT-CDO-BUSYSTATUS"), busyStatus)

	return &entities.CalendarInvite{
		Filename:    entities.InviteFilename,
		ContentType: entities.InviteContentType,
		Content:     []byte(cal.Serialize()),
	}, nil
}

// displayName makes a name safe as an unquoted CN parameter. The library
// backslash-escapes ",;:" there, which most clients render literally.
func displayName(name string) string {
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(`,;:"\`, r)
	}), " ")
}

func validateInviteEvent(ev entities.InviteEvent) error {
	switch {
	case ev.Start.IsZero():
		return errors.New("invite: start time is required")
	case ev.DurationMinutes <= 0:
		return errors.Newf("invite: duration must be positive, got %d", ev.DurationMinutes)
	case ev.Organizer.Email == "":
		return errors.New("invite: organizer email is required")
	case ev.Attendee.Email == "":
		return errors.New("invite: attendee email is required")
	case ev.Title == "":
		return errors.New("invite: title is required")
	}
	return nil
}
