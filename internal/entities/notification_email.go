package entities

type NotificationEmail struct {
	From        Contact
	To          Contact
	Subject     string
	Text        string
	HTML        string
	Attachments []CalendarInvite
}

// BookingEmailData feeds the email templates. Date and Time are the values
// the client submitted, not the UTC conversion.
type BookingEmailData struct {
	ClientName      string
	ClientEmail     string
	Date            string
	Time            string
	DurationMinutes int
	OperatorName    string
}
