package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	apperrors "coachbooking/internal/errors"
	"coachbooking/internal/entities"
	"coachbooking/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock implementations

type mockPayments struct {
	mu     sync.Mutex
	status entities.PaymentStatus
	err    error
	delay  time.Duration
	calls  int
}

func (m *mockPayments) Verify(ctx context.Context, reference string) (*entities.PaymentVerification, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &entities.PaymentVerification{Reference: reference, Status: m.status}, nil
}

type mockInvites struct {
	mu     sync.Mutex
	events []entities.InviteEvent
	err    error
}

func (m *mockInvites) Build(ctx context.Context, ev entities.InviteEvent) (*entities.CalendarInvite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	if m.err != nil {
		return nil, m.err
	}
	return &entities.CalendarInvite{
		Filename:    entities.InviteFilename,
		ContentType: entities.InviteContentType,
		Content:     []byte("BEGIN:VCALENDAR\r\nUID:" + ev.Reference + "\r\nEND:VCALENDAR"),
	}, nil
}

type mockMailer struct {
	mu     sync.Mutex
	sent   []entities.NotificationEmail
	failOn string // fail if To matches this
}

func (m *mockMailer) Send(ctx context.Context, msg entities.NotificationEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && msg.To.Email == m.failOn {
		return errors.New("mock smtp error: 451 relay unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockSMS struct {
	sent []string
	err  error
}

func (m *mockSMS) SendSMS(ctx context.Context, to, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+": "+body)
	return nil
}

type mockGuard struct {
	claimed  map[string]bool
	released []string
	err      error
}

func (m *mockGuard) Claim(ctx context.Context, sessionID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.claimed[sessionID] {
		return false, nil
	}
	m.claimed[sessionID] = true
	return true, nil
}

func (m *mockGuard) Release(ctx context.Context, sessionID string) error {
	delete(m.claimed, sessionID)
	m.released = append(m.released, sessionID)
	return nil
}

type harness struct {
	payments *mockPayments
	invites  *mockInvites
	mailer   *mockMailer
	svc      *BookingService
}

const operatorEmail = "coach@example.com"

var utcMinus5 = time.FixedZone("UTC-5", -5*60*60)

func newHarness(opts BookingOptions) *harness {
	h := &harness{
		payments: &mockPayments{status: entities.PaymentStatusPaid},
		invites:  &mockInvites{},
		mailer:   &mockMailer{},
	}
	if opts.Location == nil {
		opts.Location = utcMinus5
	}
	sender := NewSenderService(entities.Contact{Name: "Jordan Reyes", Email: operatorEmail})
	h.svc = NewBookingService(h.payments, h.invites, h.mailer, sender, opts, zap.NewNop())
	return h
}

func (h *harness) externalCalls() int {
	return h.payments.calls + len(h.invites.events) + len(h.mailer.sent)
}

func validRequest() entities.BookingRequest {
	return entities.BookingRequest{
		SessionReference: "cs_test_123",
		ClientName:       "Jane Doe",
		ClientEmail:      "jane@example.com",
		LocalDate:        "2025-03-10",
		LocalTime:        "14:30",
		DurationMinutes:  60,
	}
}

func requireHTTPError(t *testing.T, err error, code int, msg string) *apperrors.HTTPError {
	t.Helper()
	require.Error(t, err)
	var httpErr *apperrors.HTTPError
	require.True(t, errors.As(err, &httpErr), "expected *HTTPError, got %T", err)
	assert.Equal(t, code, httpErr.Code)
	assert.Equal(t, msg, httpErr.Message)
	return httpErr
}

func TestConfirmBooking_Success(t *testing.T) {
	h := newHarness(BookingOptions{})

	result, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	require.NoError(t, err)
	assert.True(t, result.OK)

	require.Len(t, h.invites.events, 1)
	ev := h.invites.events[0]
	assert.Equal(t, time.Date(2025, 3, 10, 19, 30, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, 2025, ev.Start.Year())
	assert.Equal(t, time.March, ev.Start.Month())
	assert.Equal(t, 10, ev.Start.Day())
	assert.Equal(t, 19, ev.Start.Hour())
	assert.Equal(t, 30, ev.Start.Minute())
	assert.Equal(t, 60, ev.DurationMinutes)
	assert.Equal(t, "Coaching Session", ev.Title)
	assert.Equal(t, operatorEmail, ev.Organizer.Email)
	assert.Equal(t, "jane@example.com", ev.Attendee.Email)

	require.Len(t, h.mailer.sent, 2)
	clientMsg, operatorMsg := h.mailer.sent[0], h.mailer.sent[1]
	assert.Equal(t, "jane@example.com", clientMsg.To.Email)
	assert.Equal(t, operatorEmail, operatorMsg.To.Email)
	assert.Contains(t, clientMsg.Text, "2025-03-10 14:30")
	assert.NotEqual(t, clientMsg.Subject, operatorMsg.Subject)

	require.Len(t, clientMsg.Attachments, 1)
	require.Len(t, operatorMsg.Attachments, 1)
	assert.Equal(t, "coaching-session.ics", clientMsg.Attachments[0].Filename)
	assert.Equal(t, "coaching-session.ics", operatorMsg.Attachments[0].Filename)
	assert.Equal(t, clientMsg.Attachments[0].Content, operatorMsg.Attachments[0].Content)
}

func TestConfirmBooking_DefaultDuration(t *testing.T) {
	h := newHarness(BookingOptions{})
	req := validRequest()
	req.DurationMinutes = 0

	_, err := h.svc.ConfirmBooking(context.Background(), req, "")
	require.NoError(t, err)
	require.Len(t, h.invites.events, 1)
	assert.Equal(t, 60, h.invites.events[0].DurationMinutes)
	assert.Contains(t, h.mailer.sent[1].Text, "Duration: 60 minutes")
}

func TestConfirmBooking_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *entities.BookingRequest)
	}{
		{"session", func(r *entities.BookingRequest) { r.SessionReference = "" }},
		{"name", func(r *entities.BookingRequest) { r.ClientName = "" }},
		{"email", func(r *entities.BookingRequest) { r.ClientEmail = "  " }},
		{"date", func(r *entities.BookingRequest) { r.LocalDate = "" }},
		{"time", func(r *entities.BookingRequest) { r.LocalTime = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(BookingOptions{})
			req := validRequest()
			tt.mutate(&req)

			_, err := h.svc.ConfirmBooking(context.Background(), req, "")
			requireHTTPError(t, err, http.StatusBadRequest, "Missing required fields.")
			assert.Zero(t, h.externalCalls())
		})
	}
}

func TestConfirmBooking_InvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *entities.BookingRequest)
	}{
		{"bad date", func(r *entities.BookingRequest) { r.LocalDate = "10/03/2025" }},
		{"bad time", func(r *entities.BookingRequest) { r.LocalTime = "2:30pm" }},
		{"negative duration", func(r *entities.BookingRequest) { r.DurationMinutes = -30 }},
		{"huge duration", func(r *entities.BookingRequest) { r.DurationMinutes = 10000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(BookingOptions{})
			req := validRequest()
			tt.mutate(&req)

			_, err := h.svc.ConfirmBooking(context.Background(), req, "")
			requireHTTPError(t, err, http.StatusBadRequest, apperrors.MsgInvalidFields)
			assert.Zero(t, h.externalCalls())
		})
	}
}

func TestConfirmBooking_ControlCharactersInContact(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *entities.BookingRequest)
	}{
		{"header injection in name", func(r *entities.BookingRequest) { r.ClientName = "Jane\r\nATTENDEE:mailto:evil@x.com" }},
		{"newline in email", func(r *entities.BookingRequest) { r.ClientEmail = "jane@example.com\nBcc: evil@x.com" }},
		{"tab in name", func(r *entities.BookingRequest) { r.ClientName = "Jane\tDoe" }},
		{"nul in email", func(r *entities.BookingRequest) { r.ClientEmail = "jane\x00@example.com" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(BookingOptions{})
			req := validRequest()
			tt.mutate(&req)

			_, err := h.svc.ConfirmBooking(context.Background(), req, "")
			requireHTTPError(t, err, http.StatusBadRequest, apperrors.MsgInvalidContact)
			assert.Zero(t, h.externalCalls())
		})
	}
}

func TestConfirmBooking_PunctuatedNameAccepted(t *testing.T) {
	h := newHarness(BookingOptions{})
	req := validRequest()
	req.ClientName = `Doe, Jane "JD"; O'Neil`

	_, err := h.svc.ConfirmBooking(context.Background(), req, "")
	require.NoError(t, err)
	require.Len(t, h.invites.events, 1)
	assert.Equal(t, req.ClientName, h.invites.events[0].Attendee.Name)
}

func TestConfirmBooking_SharedSecret(t *testing.T) {
	tests := []struct {
		name     string
		provided string
		req      entities.BookingRequest
	}{
		{"missing header", "", validRequest()},
		{"wrong secret", "nope", validRequest()},
		{"wrong secret with invalid body", "nope", entities.BookingRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(BookingOptions{Secret: "s3cret"})

			_, err := h.svc.ConfirmBooking(context.Background(), tt.req, tt.provided)
			requireHTTPError(t, err, http.StatusUnauthorized, "Unauthorized")
			assert.Zero(t, h.externalCalls())
		})
	}

	h := newHarness(BookingOptions{Secret: "s3cret"})
	result, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "s3cret")
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestConfirmBooking_PaymentNotPaid(t *testing.T) {
	for _, status := range []entities.PaymentStatus{entities.PaymentStatusUnpaid, entities.PaymentStatusUnknown} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(BookingOptions{})
			h.payments.status = status

			_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
			requireHTTPError(t, err, http.StatusPaymentRequired, "Payment not verified.")
			assert.Equal(t, 1, h.payments.calls)
			assert.Empty(t, h.invites.events)
			assert.Empty(t, h.mailer.sent)
		})
	}
}

func TestConfirmBooking_PaymentLookupError(t *testing.T) {
	h := newHarness(BookingOptions{})
	h.payments.err = errors.New("stripe: invalid API key sk_live_secret")

	_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	httpErr := requireHTTPError(t, err, http.StatusInternalServerError, "Booking failed. Please try again.")
	assert.NotContains(t, httpErr.Message, "sk_live")
	assert.Equal(t, apperrors.KindPaymentLookupFailed, httpErr.Kind)
	assert.False(t, httpErr.Retryable())
	assert.Empty(t, h.invites.events)
	assert.Empty(t, h.mailer.sent)
}

func TestConfirmBooking_PaymentTimeout(t *testing.T) {
	h := newHarness(BookingOptions{PaymentTimeout: 20 * time.Millisecond})
	h.payments.delay = time.Second

	start := time.Now()
	_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	httpErr := requireHTTPError(t, err, http.StatusInternalServerError, apperrors.MsgBookingFailed)
	assert.True(t, httpErr.Retryable())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, h.mailer.sent)
}

func TestConfirmBooking_InviteFailure(t *testing.T) {
	h := newHarness(BookingOptions{})
	h.invites.err = errors.New("ics: invalid start array [2025 3 10 NaN]")

	_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	httpErr := requireHTTPError(t, err, http.StatusInternalServerError, "Booking failed. Please try again.")
	assert.Equal(t, apperrors.KindInviteGenerationFailed, httpErr.Kind)
	assert.NotContains(t, httpErr.Message, "NaN")
	assert.Empty(t, h.mailer.sent)
}

func TestConfirmBooking_ClientEmailFailure(t *testing.T) {
	h := newHarness(BookingOptions{})
	h.mailer.failOn = "jane@example.com"

	_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	httpErr := requireHTTPError(t, err, http.StatusInternalServerError, apperrors.MsgBookingFailed)
	assert.Equal(t, apperrors.KindNotificationFailed, httpErr.Kind)
	assert.Empty(t, h.mailer.sent, "operator copy must not be attempted after client failure")
}

func TestConfirmBooking_OperatorEmailFailure_NoDedupe(t *testing.T) {
	h := newHarness(BookingOptions{})
	h.mailer.failOn = operatorEmail

	_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	httpErr := requireHTTPError(t, err, http.StatusInternalServerError, apperrors.MsgBookingFailed)
	assert.Equal(t, apperrors.KindNotificationFailed, httpErr.Kind)
	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "jane@example.com", h.mailer.sent[0].To.Email)

	// Resubmitting is not deduplicated: the client is mailed again.
	_, err = h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	require.Error(t, err)
	require.Len(t, h.mailer.sent, 2)
	assert.Equal(t, "jane@example.com", h.mailer.sent[1].To.Email)
	assert.Equal(t, 2, h.payments.calls)
}

func TestConfirmBooking_SessionGuard(t *testing.T) {
	h := newHarness(BookingOptions{})
	guard := &mockGuard{claimed: map[string]bool{}}
	h.svc.WithSessionGuard(guard)

	_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	require.NoError(t, err)

	_, err = h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	requireHTTPError(t, err, http.StatusConflict, apperrors.MsgAlreadyBooked)
	assert.Len(t, h.mailer.sent, 2)
}

func TestConfirmBooking_SessionGuardReleasedOnFailure(t *testing.T) {
	h := newHarness(BookingOptions{})
	guard := &mockGuard{claimed: map[string]bool{}}
	h.svc.WithSessionGuard(guard)
	h.mailer.failOn = operatorEmail

	_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	require.Error(t, err)
	assert.Equal(t, []string{"cs_test_123"}, guard.released)

	h.mailer.failOn = ""
	_, err = h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	require.NoError(t, err)
}

func TestConfirmBooking_SessionGuardUnavailable(t *testing.T) {
	h := newHarness(BookingOptions{})
	h.svc.WithSessionGuard(&mockGuard{err: errors.New("redis: connection refused")})

	_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	require.NoError(t, err)
	assert.Len(t, h.mailer.sent, 2)
}

func TestConfirmBooking_OperatorSMS(t *testing.T) {
	h := newHarness(BookingOptions{OperatorPhone: "+15551112222"})
	sms := &mockSMS{}
	h.svc.WithSMS(sms)

	_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	require.NoError(t, err)
	require.Len(t, sms.sent, 1)
	assert.Contains(t, sms.sent[0], "+15551112222: New booking: Jane Doe 2025-03-10 14:30")

	failing := newHarness(BookingOptions{OperatorPhone: "+15551112222"})
	failing.svc.WithSMS(&mockSMS{err: errors.New("twilio down")})
	result, err := failing.svc.ConfirmBooking(context.Background(), validRequest(), "")
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestConfirmBooking_DaylightSavingZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	h := newHarness(BookingOptions{Location: ny})
	req := validRequest()
	req.LocalDate = "2025-07-10"

	_, err = h.svc.ConfirmBooking(context.Background(), req, "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 10, 18, 30, 0, 0, time.UTC), h.invites.events[0].Start)
	assert.Contains(t, h.mailer.sent[0].Text, "2025-07-10 14:30")
}

func TestConfirmBooking_Concurrent(t *testing.T) {
	h := newHarness(BookingOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.ConfirmBooking(context.Background(), validRequest(), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, h.mailer.sent, 40)
	assert.Len(t, h.invites.events, 20)
}

func TestConfirmBooking_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness(BookingOptions{})
	h.svc.WithMetrics(metrics.New(reg))

	_, _ = h.svc.ConfirmBooking(context.Background(), validRequest(), "")
	_, _ = h.svc.ConfirmBooking(context.Background(), entities.BookingRequest{}, "")

	count, err := testutil.GatherAndCount(reg, "coachbooking_bookings_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
