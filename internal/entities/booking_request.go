package entities

// BookingRequest is one booking submission. It lives only for the duration
// of one request.
type BookingRequest struct {
	SessionReference string
	ClientName       string
	ClientEmail      string
	LocalDate        string // YYYY-MM-DD in the booking timezone
	LocalTime        string // HH:MM in the booking timezone
	DurationMinutes  int    // 0 means the configured default
}

// BookingResult is the success body.
type BookingResult struct {
	OK bool `json:"ok"`
}
