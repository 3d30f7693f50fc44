package utils

import (
	"fmt"
	"strings"
	"time"
)

var clockLayouts = []string{"15:04", "15:04:05"}

// ParseLocalDateTime combines a calendar date (YYYY-MM-DD) and a wall-clock
// time (HH:MM or HH:MM:SS) into an instant in loc, honouring any daylight
// saving offset in effect on that date.
func ParseLocalDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}

	var (
		hm       time.Time
		parseErr error
	)
	for _, layout := range clockLayouts {
		hm, parseErr = time.Parse(layout, clock)
		if parseErr == nil {
			break
		}
	}
	if parseErr != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", clock, parseErr)
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), hm.Second(), 0, loc), nil
}

// ToUTCWindowStart converts the local wall-clock reading to UTC.
func ToUTCWindowStart(date, clock string, loc *time.Location) (time.Time, error) {
	local, err := ParseLocalDateTime(date, clock, loc)
	if err != nil {
		return time.Time{}, err
	}
	return local.UTC(), nil
}
