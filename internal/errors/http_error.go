package errors

import "net/http"

// Kind classifies a booking failure independently of its HTTP status.
type Kind string

const (
	KindUnauthorized           Kind = "unauthorized"
	KindBadRequest             Kind = "bad_request"
	KindPaymentNotVerified     Kind = "payment_not_verified"
	KindAlreadyBooked          Kind = "already_booked"
	KindPaymentLookupFailed    Kind = "payment_lookup_failed"
	KindInviteGenerationFailed Kind = "invite_generation_failed"
	KindNotificationFailed     Kind = "notification_failed"
)

// Public messages. Internal failures all share MsgBookingFailed.
const (
	MsgUnauthorized       = "Unauthorized"
	MsgMissingFields      = "Missing required fields."
	MsgInvalidFields      = "Invalid date, time or duration."
	MsgInvalidContact     = "Invalid name or email."
	MsgPaymentNotVerified = "Payment not verified."
	MsgAlreadyBooked      = "Booking already confirmed."
	MsgBookingFailed      = "Booking failed. Please try again."
)

// HTTPError represents an error with an associated HTTP status code.
// Message is safe to show to callers; Err holds the detail for logs only.
type HTTPError struct {
	Code      int
	Message   string
	Kind      Kind
	Err       error
	retryable bool
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Retryable reports whether resubmitting the same request may succeed,
// e.g. after an upstream timeout.
func (e *HTTPError) Retryable() bool {
	return e.retryable
}

// WithRetryable marks the error as transient.
func (e *HTTPError) WithRetryable(retryable bool) *HTTPError {
	e.retryable = retryable
	return e
}

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

func newKind(code int, kind Kind, message string, cause error) *HTTPError {
	e := NewHTTPError(code, message)
	e.Kind = kind
	e.Err = cause
	return e
}

// Helper for common errors
var (
	ErrUnauthorized = func() *HTTPError {
		return newKind(http.StatusUnauthorized, KindUnauthorized, MsgUnauthorized, nil)
	}
	ErrMissingFields = func() *HTTPError {
		return newKind(http.StatusBadRequest, KindBadRequest, MsgMissingFields, nil)
	}
	ErrInvalidFields = func(cause error) *HTTPError {
		return newKind(http.StatusBadRequest, KindBadRequest, MsgInvalidFields, cause)
	}
	ErrInvalidContact = func(cause error) *HTTPError {
		return newKind(http.StatusBadRequest, KindBadRequest, MsgInvalidContact, cause)
	}
	ErrPaymentNotVerified = func(cause error) *HTTPError {
		return newKind(http.StatusPaymentRequired, KindPaymentNotVerified, MsgPaymentNotVerified, cause)
	}
	ErrAlreadyBooked = func() *HTTPError {
		return newKind(http.StatusConflict, KindAlreadyBooked, MsgAlreadyBooked, nil)
	}
	ErrPaymentLookupFailed = func(cause error) *HTTPError {
		return newKind(http.StatusInternalServerError, KindPaymentLookupFailed, MsgBookingFailed, cause)
	}
	ErrInviteGenerationFailed = func(cause error) *HTTPError {
		return newKind(http.StatusInternalServerError, KindInviteGenerationFailed, MsgBookingFailed, cause)
	}
	ErrNotificationFailed = func(cause error) *HTTPError {
		return newKind(http.StatusInternalServerError, KindNotificationFailed, MsgBookingFailed, cause)
	}
)
