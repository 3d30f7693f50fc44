package entities

import "time"

// MeetingWindow is the confirmed session expressed as an absolute instant.
type MeetingWindow struct {
	StartUTC        time.Time
	DurationMinutes int
}

func (w MeetingWindow) End() time.Time {
	return w.StartUTC.Add(time.Duration(w.DurationMinutes) * time.Minute)
}
