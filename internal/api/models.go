package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"coachbooking/internal/entities"
)

// BookRequest is the JSON body of POST /api/book.
type BookRequest struct {
	SessionID string  `json:"session_id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Duration  Minutes `json:"duration"`
}

func (r BookRequest) toEntity() entities.BookingRequest {
	return entities.BookingRequest{
		SessionReference: r.SessionID,
		ClientName:       r.Name,
		ClientEmail:      r.Email,
		LocalDate:        r.Date,
		LocalTime:        r.Time,
		DurationMinutes:  int(r.Duration),
	}
}

// Minutes accepts a JSON number or a numeric string. null or "" mean unset.
// Anything else decodes to invalidMinutes so validation rejects it instead of
// the whole body failing to parse.
type Minutes int

const invalidMinutes Minutes = -1

func (m *Minutes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*m = invalidMinutes
			return nil
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*m = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		*m = invalidMinutes
		return nil
	}
	if f == 0 {
		// An explicit zero is never a valid length.
		*m = invalidMinutes
		return nil
	}
	*m = Minutes(int(f))
	return nil
}

type ErrorResponse struct {
	Error string `json:"error"`
}
