// Package verifier confirms that a checkout session was paid.
package verifier

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"

	dErrors "expatdesk/pkg/domain-errors"
	"expatdesk/pkg/platform/sentinel"
)

// PaidSession is the part of a checkout session the desk cares about.
type PaidSession struct {
	ID            string
	CustomerEmail string
	Paid          bool
}

// FromStripe extracts a PaidSession from a Stripe checkout session.
func FromStripe(cs *stripe.CheckoutSession) *PaidSession {
	email := cs.CustomerEmail
	if cs.CustomerDetails != nil && cs.CustomerDetails.Email != "" {
		email = cs.CustomerDetails.Email
	}
	return &PaidSession{
		ID:            cs.ID,
		CustomerEmail: strings.TrimSpace(email),
		Paid:          cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
}

// StripeVerifier retrieves checkout sessions from Stripe.
type StripeVerifier struct {
	client *session.Client
}

// NewStripeVerifier builds a verifier for the given secret key. backend may
// be nil to use the default API backend.
func NewStripeVerifier(secretKey string, backend stripe.Backend) *StripeVerifier {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeVerifier{client: &session.Client{B: backend, Key: secretKey}}
}

// VerifySession returns sentinel.ErrNotFound for unknown sessions and a
// bad request error for sessions that are not paid. Anything else is an
// upstream failure.
func (v *StripeVerifier) VerifySession(ctx context.Context, sessionID string) (*PaidSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := v.client.Get(sessionID, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) {
			if serr.HTTPStatusCode == http.StatusNotFound || serr.Code == stripe.ErrorCodeResourceMissing {
				return nil, sentinel.ErrNotFound
			}
		}
		return nil, err
	}
	paid := FromStripe(cs)
	if !paid.Paid {
		return nil, dErrors.New(dErrors.CodeBadRequest, "checkout session is not paid")
	}
	return paid, nil
}
