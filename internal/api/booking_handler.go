package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "coachbooking/internal/errors"
	"coachbooking/internal/entities"

	"go.uber.org/zap"
)

const (
	BookingKeyHeader = "X-Booking-Key"
	maxBodyBytes     = int64(65536)
)

type BookingConfirmer interface {
	ConfirmBooking(ctx context.Context, req entities.BookingRequest, providedSecret string) (*entities.BookingResult, error)
}

type BookingHandler struct {
	service BookingConfirmer
	logger  *zap.Logger
}

func NewBookingHandler(svc BookingConfirmer, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{service: svc, logger: logger}
}

// Book handles POST /api/book.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// An unreadable body is treated like an empty one; the secret check
		// still runs first inside the service.
		h.logger.Debug("invalid booking body", zap.Error(err))
		req = BookRequest{}
	}

	result, err := h.service.ConfirmBooking(r.Context(), req.toEntity(), r.Header.Get(BookingKeyHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeError(w http.ResponseWriter, err error) {
	var httpErr *apperrors.HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = apperrors.NewHTTPError(http.StatusInternalServerError, apperrors.MsgBookingFailed)
	}
	writeJSON(w, httpErr.Code, ErrorResponse{Error: httpErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
