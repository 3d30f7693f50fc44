package service

import (
	"context"
	"net"
	"strings"
	"time"
	"unicode"

	"coachbooking/internal/auth"
	apperrors "coachbooking/internal/errors"
	"coachbooking/internal/entities"
	"coachbooking/internal/metrics"
	"coachbooking/internal/utils"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	sessionTitle = "Coaching Session"
	maxDuration  = 8 * 60
)

// PaymentVerifier reports the payment status of a checkout session.
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (*entities.PaymentVerification, error)
}

// InviteBuilder renders the calendar invite attached to both emails.
type InviteBuilder interface {
	Build(ctx context.Context, ev entities.InviteEvent) (*entities.CalendarInvite, error)
}

type Mailer interface {
	Send(ctx context.Context, msg entities.NotificationEmail) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// SessionGuard deduplicates bookings per checkout session.
type SessionGuard interface {
	Claim(ctx context.Context, sessionID string) (bool, error)
	Release(ctx context.Context, sessionID string) error
}

type BookingOptions struct {
	// Secret enables the shared-secret check when non-empty.
	Secret          string
	Location        *time.Location
	DefaultDuration int
	PaymentTimeout  time.Duration
	InviteTimeout   time.Duration
	MailTimeout     time.Duration
	OperatorPhone   string
}

// BookingService confirms paid coaching sessions. It holds no per-request
// state and is safe for concurrent use.
type BookingService struct {
	payments PaymentVerifier
	invites  InviteBuilder
	mailer   Mailer
	sender   *SenderService
	sms      SMSSender
	guard    SessionGuard
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     BookingOptions
}

func NewBookingService(
	payments PaymentVerifier,
	invites InviteBuilder,
	mailer Mailer,
	sender *SenderService,
	opts BookingOptions,
	logger *zap.Logger,
) *BookingService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		payments: payments,
		invites:  invites,
		mailer:   mailer,
		sender:   sender,
		opts:     opts,
		logger:   logger,
	}
}

// WithSMS enables the best-effort operator SMS alert.
func (s *BookingService) WithSMS(sms SMSSender) *BookingService {
	s.sms = sms
	return s
}

// WithSessionGuard enables deduplication by checkout session.
func (s *BookingService) WithSessionGuard(guard SessionGuard) *BookingService {
	s.guard = guard
	return s
}

func (s *BookingService) WithMetrics(m *metrics.Metrics) *BookingService {
	s.metrics = m
	return s
}

// ConfirmBooking runs the confirmation pipeline: secret check, validation,
// payment lookup, UTC conversion, invite, client email, operator email.
// The first failing step ends the request. Returned errors are always
// *apperrors.HTTPError.
func (s *BookingService) ConfirmBooking(ctx context.Context, req entities.BookingRequest, providedSecret string) (*entities.BookingResult, error) {
	result, err := s.confirm(ctx, req, providedSecret)
	if err != nil {
		var httpErr *apperrors.HTTPError
		if !errors.As(err, &httpErr) {
			httpErr = apperrors.ErrNotificationFailed(err)
		}
		s.metrics.ObserveBooking(string(httpErr.Kind))
		s.logFailure(req, httpErr)
		return nil, httpErr
	}
	s.metrics.ObserveBooking("ok")
	return result, nil
}

func (s *BookingService) confirm(ctx context.Context, req entities.BookingRequest, providedSecret string) (*entities.BookingResult, error) {
	if !auth.SecretMatches(s.opts.Secret, providedSecret) {
		return nil, apperrors.ErrUnauthorized()
	}

	req = normalize(req)
	window, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	if err := s.verifyPayment(ctx, req.SessionReference); err != nil {
		return nil, err
	}

	holdsClaim := false
	if s.guard != nil {
		claimed, claimErr := s.guard.Claim(ctx, req.SessionReference)
		switch {
		case claimErr != nil:
			s.logger.Warn("session guard unavailable; continuing without dedupe",
				zap.String("session_id", req.SessionReference), zap.Error(claimErr))
		case !claimed:
			return nil, apperrors.ErrAlreadyBooked()
		default:
			holdsClaim = true
		}
	}

	invite, err := s.buildInvite(ctx, req, window)
	if err != nil {
		s.releaseClaim(holdsClaim, req.SessionReference)
		return nil, err
	}

	if err := s.notify(ctx, req, window, *invite); err != nil {
		s.releaseClaim(holdsClaim, req.SessionReference)
		return nil, err
	}

	s.alertOperator(ctx, req, window)

	s.logger.Info("booking confirmed",
		zap.String("session_id", req.SessionReference),
		zap.Time("start_utc", window.StartUTC),
		zap.Time("end_utc", window.End()),
		zap.Int("duration_minutes", window.DurationMinutes))
	return &entities.BookingResult{OK: true}, nil
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

func normalize(req entities.BookingRequest) entities.BookingRequest {
	req.SessionReference = strings.TrimSpace(req.SessionReference)
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientEmail = strings.TrimSpace(req.ClientEmail)
	req.LocalDate = strings.TrimSpace(req.LocalDate)
	req.LocalTime = strings.TrimSpace(req.LocalTime)
	return req
}

// validate is local and side-effect free. It also derives the meeting window
// so malformed dates are rejected before any external call.
func (s *BookingService) validate(req entities.BookingRequest) (entities.MeetingWindow, error) {
	if req.SessionReference == "" || req.ClientName == "" || req.ClientEmail == "" ||
		req.LocalDate == "" || req.LocalTime == "" {
		return entities.MeetingWindow{}, apperrors.ErrMissingFields()
	}
	// Name and email end up in mail headers and the invite's ATTENDEE line.
	if hasControl(req.ClientName) || hasControl(req.ClientEmail) {
		return entities.MeetingWindow{}, apperrors.ErrInvalidContact(errors.New("control character in name or email"))
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = s.opts.DefaultDuration
	}
	if duration < 0 || duration > maxDuration {
		return entities.MeetingWindow{}, apperrors.ErrInvalidFields(errors.Newf("duration %d out of range", duration))
	}

	start, err := utils.ToUTCWindowStart(req.LocalDate, req.LocalTime, s.opts.Location)
	if err != nil {
		return entities.MeetingWindow{}, apperrors.ErrInvalidFields(err)
	}
	return entities.MeetingWindow{StartUTC: start, DurationMinutes: duration}, nil
}

func (s *BookingService) verifyPayment(ctx context.Context, reference string) error {
	ctx, cancel := withTimeout(ctx, s.opts.PaymentTimeout)
	defer cancel()

	started := time.Now()
	verification, err := s.payments.Verify(ctx, reference)
	s.metrics.ObserveCall("payment", started, err)
	if err != nil {
		return apperrors.ErrPaymentLookupFailed(err).WithRetryable(isTransient(err))
	}
	if verification == nil || !verification.Paid() {
		status := entities.PaymentStatusUnknown
		if verification != nil {
			status = verification.Status
		}
		return apperrors.ErrPaymentNotVerified(errors.Newf("session %s has payment status %s", reference, status))
	}
	return nil
}

func (s *BookingService) buildInvite(ctx context.Context, req entities.BookingRequest, window entities.MeetingWindow) (*entities.CalendarInvite, error) {
	ctx, cancel := withTimeout(ctx, s.opts.InviteTimeout)
	defer cancel()

	operator := s.sender.Operator()
	started := time.Now()
	invite, err := s.invites.Build(ctx, entities.InviteEvent{
		Reference:       req.SessionReference,
		Title:           sessionTitle,
		Description:     "Your life coaching session with " + operator.Name + ".",
		Organizer:       operator,
		Attendee:        entities.Contact{Name: req.ClientName, Email: req.ClientEmail},
		Start:           window.StartUTC,
		DurationMinutes: window.DurationMinutes,
	})
	s.metrics.ObserveCall("invite", started, err)
	if err != nil {
		return nil, apperrors.ErrInviteGenerationFailed(err).WithRetryable(isTransient(err))
	}
	if invite == nil || len(invite.Content) == 0 {
		return nil, apperrors.ErrInviteGenerationFailed(errors.New("invite builder returned no content"))
	}
	return invite, nil
}

// notify sends the client confirmation, then the operator copy. A failure of
// the second send is not rolled back.
func (s *BookingService) notify(ctx context.Context, req entities.BookingRequest, window entities.MeetingWindow, invite entities.CalendarInvite) error {
	data := entities.BookingEmailData{
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		Date:            req.LocalDate,
		Time:            req.LocalTime,
		DurationMinutes: window.DurationMinutes,
	}

	clientMsg, err := s.sender.ClientConfirmation(data, invite)
	if err != nil {
		return apperrors.ErrNotificationFailed(err)
	}
	operatorMsg, err := s.sender.OperatorNotification(data, invite)
	if err != nil {
		return apperrors.ErrNotificationFailed(err)
	}

	if err := s.send(ctx, clientMsg); err != nil {
		return apperrors.ErrNotificationFailed(errors.Wrap(err, "client confirmation")).WithRetryable(isTransient(err))
	}
	if err := s.send(ctx, operatorMsg); err != nil {
		s.logger.Warn("client was notified but operator copy failed",
			zap.String("session_id", req.SessionReference))
		return apperrors.ErrNotificationFailed(errors.Wrap(err, "operator notification")).WithRetryable(isTransient(err))
	}
	return nil
}

func (s *BookingService) send(ctx context.Context, msg entities.NotificationEmail) error {
	ctx, cancel := withTimeout(ctx, s.opts.MailTimeout)
	defer cancel()

	started := time.Now()
	err := s.mailer.Send(ctx, msg)
	s.metrics.ObserveCall("mail", started, err)
	return err
}

// alertOperator never affects the booking result.
func (s *BookingService) alertOperator(ctx context.Context, req entities.BookingRequest, window entities.MeetingWindow) {
	if s.sms == nil || s.opts.OperatorPhone == "" {
		return
	}
	ctx, cancel := withTimeout(ctx, s.opts.MailTimeout)
	defer cancel()

	body := s.sender.OperatorSMS(entities.BookingEmailData{
		ClientName:      req.ClientName,
		Date:            req.LocalDate,
		Time:            req.LocalTime,
		DurationMinutes: window.DurationMinutes,
	})
	started := time.Now()
	err := s.sms.SendSMS(ctx, s.opts.OperatorPhone, body)
	s.metrics.ObserveCall("sms", started, err)
	if err != nil {
		s.logger.Warn("operator sms failed", zap.String("session_id", req.SessionReference), zap.Error(err))
	}
}

func (s *BookingService) releaseClaim(held bool, sessionID string) {
	if !held {
		return
	}
	// The request context may already be done; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.guard.Release(ctx, sessionID); err != nil {
		s.logger.Error("failed to release session claim", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *BookingService) logFailure(req entities.BookingRequest, err *apperrors.HTTPError) {
	fields := []zap.Field{
		zap.String("kind", string(err.Kind)),
		zap.Int("status", err.Code),
		zap.String("session_id", req.SessionReference),
		zap.Bool("retryable", err.Retryable()),
	}
	if err.Err != nil {
		fields = append(fields, zap.Error(err.Err))
	}
	if err.Code >= 500 {
		s.logger.Error("booking failed", fields...)
		return
	}
	s.logger.Info("booking rejected", fields...)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
