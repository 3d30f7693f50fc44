package entities

import "time"

const (
	InviteFilename    = "coaching-session.ics"
	InviteContentType = "text/calendar; charset=utf-8"
)

type Contact struct {
	Name  string
	Email string
}

// InviteEvent carries the fields of the single VEVENT in a booking invite.
type InviteEvent struct {
	Reference       string
	Title           string
	Description     string
	Organizer       Contact
	Attendee        Contact
	Start           time.Time // UTC
	DurationMinutes int
}

// CalendarInvite is the generated calendar document attached to both emails.
type CalendarInvite struct {
	Filename    string
	ContentType string
	Content     []byte
}
