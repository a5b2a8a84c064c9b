// Package service exchanges a paid checkout session for a review access token.
package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"expatdesk/internal/checkout/verifier"
	"expatdesk/internal/review/models"
	dErrors "expatdesk/pkg/domain-errors"
	audit "expatdesk/pkg/platform/audit"
	"expatdesk/pkg/platform/circuit"
	"expatdesk/pkg/platform/sentinel"
)

// Verifier confirms a session with the payment provider.
type Verifier interface {
	VerifySession(ctx context.Context, sessionID string) (*verifier.PaidSession, error)
}

// Reviews is the review service surface used by the exchange.
type Reviews interface {
	FindByCheckoutSession(ctx context.Context, sessionID string) (*models.ReviewRecord, error)
	Create(ctx context.Context, req models.CreateRequest) (*models.ReviewRecord, bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Result is the outcome of an exchange.
type Result struct {
	AccessToken string `json:"access_token"`
	Created     bool   `json:"created"`
}

type Service struct {
	reviews        Reviews
	verifier       Verifier
	breaker        *circuit.Breaker
	logger         *zap.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = p }
}

func New(reviews Reviews, v Verifier, opts ...Option) *Service {
	s := &Service{
		reviews:  reviews,
		verifier: v,
		breaker:  circuit.New("checkout-verifier", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchange resolves a payment redirect. Returning customers get their
// existing token without another provider round trip.
func (s *Service) Exchange(ctx context.Context, sessionID string) (*Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "checkout session id is required")
	}

	existing, err := s.reviews.FindByCheckoutSession(ctx, sessionID)
	if err == nil {
		return &Result{AccessToken: existing.AccessToken.String()}, nil
	}
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, err
	}

	paid, err := s.verify(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, paid)
}

// CompleteSession handles a provider-pushed completion. The session has
// already been authenticated by the webhook signature.
func (s *Service) CompleteSession(ctx context.Context, paid *verifier.PaidSession) (*Result, error) {
	if paid == nil || paid.ID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "checkout session id is required")
	}
	if !paid.Paid {
		return nil, dErrors.New(dErrors.CodeBadRequest, "checkout session is not paid")
	}
	return s.open(ctx, paid)
}

func (s *Service) verify(ctx context.Context, sessionID string) (*verifier.PaidSession, error) {
	if !s.breaker.Allow() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "payment provider unavailable")
	}
	paid, err := s.verifier.VerifySession(ctx, sessionID)
	switch {
	case err == nil:
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.Info("checkout verifier recovered", zap.String("breaker", s.breaker.Name()))
		}
		return paid, nil
	case errors.Is(err, sentinel.ErrNotFound):
		s.breaker.RecordSuccess()
		return nil, dErrors.New(dErrors.CodeNotFound, "checkout session not found")
	case dErrors.HasCode(err, dErrors.CodeBadRequest):
		s.breaker.RecordSuccess()
		return nil, err
	}

	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.Warn("checkout verifier breaker opened", zap.String("breaker", s.breaker.Name()))
	}
	s.logger.Error("checkout verification failed", zap.String("session_id", sessionID), zap.Error(err))
	return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "payment provider unavailable")
}

func (s *Service) open(ctx context.Context, paid *verifier.PaidSession) (*Result, error) {
	record, created, err := s.reviews.Create(ctx, models.CreateRequest{
		CheckoutSessionID: paid.ID,
		CustomerEmail:     paid.CustomerEmail,
	})
	if err != nil {
		return nil, err
	}
	if created && s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.Event{
			Subject: record.ID.String(),
			Action:  string(audit.EventCheckoutExchanged),
			Details: map[string]string{"checkout_session_id": paid.ID},
		}); err != nil {
			s.logger.Warn("failed to record checkout audit event", zap.Error(err))
		}
	}
	return &Result{AccessToken: record.AccessToken.String(), Created: created}, nil
}
