package service

import (
	"context"
	"net/http"
	"time"

	"coachbooking/internal/entities"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// checkoutSessionGetter is satisfied by session.Client.
type checkoutSessionGetter interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeService looks up Checkout Sessions to confirm that a booking was paid.
type StripeService struct {
	sessions checkoutSessionGetter
}

// NewStripeService builds a client bound to secretKey. The HTTP timeout caps
// every call to Stripe even when the caller's context has no deadline.
func NewStripeService(secretKey string, timeout time.Duration) *StripeService {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return &StripeService{
		sessions: session.Client{B: backend, Key: secretKey},
	}
}

func newStripeServiceWithGetter(g checkoutSessionGetter) *StripeService {
	return &StripeService{sessions: g}
}

// Verify retrieves the checkout session and maps its payment status.
func (s *StripeService) Verify(ctx context.Context, sessionID string) (*entities.PaymentVerification, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.sessions.Get(sessionID, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrapf(ctxErr, "retrieving checkout session %s", sessionID)
		}
		return nil, errors.Wrapf(err, "retrieving checkout session %s", sessionID)
	}
	if sess == nil {
		return nil, errors.Newf("empty checkout session %s", sessionID)
	}

	return &entities.PaymentVerification{
		Reference: sessionID,
		Status:    mapPaymentStatus(sess.PaymentStatus),
	}, nil
}

func mapPaymentStatus(status stripe.CheckoutSessionPaymentStatus) entities.PaymentStatus {
	switch status {
	case stripe.CheckoutSessionPaymentStatusPaid:
		return entities.PaymentStatusPaid
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		return entities.PaymentStatusUnpaid
	default:
		return entities.PaymentStatusUnknown
	}
}
