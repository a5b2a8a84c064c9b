package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"expatdesk/internal/checkout/verifier"
	reviewservice "expatdesk/internal/review/service"
	"expatdesk/internal/review/store"
	dErrors "expatdesk/pkg/domain-errors"
	audit "expatdesk/pkg/platform/audit"
	"expatdesk/pkg/platform/audit/publisher"
	auditmemory "expatdesk/pkg/platform/audit/store/memory"
	"expatdesk/pkg/platform/circuit"
	"expatdesk/pkg/platform/sentinel"
)

type fakeVerifier struct {
	mu       sync.Mutex
	sessions map[string]*verifier.PaidSession
	err      error
	calls    int
}

func (f *fakeVerifier) VerifySession(_ context.Context, id string) (*verifier.PaidSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !s.Paid {
		return nil, dErrors.New(dErrors.CodeBadRequest, "checkout session is not paid")
	}
	return s, nil
}

type CheckoutServiceSuite struct {
	suite.Suite
	ctx        context.Context
	verifier   *fakeVerifier
	reviews    *reviewservice.Service
	auditStore *auditmemory.InMemoryStore
	service    *Service
	now        time.Time
}

func TestCheckoutServiceSuite(t *testing.T) {
	suite.Run(t, new(CheckoutServiceSuite))
}

func (s *CheckoutServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.verifier = &fakeVerifier{sessions: map[string]*verifier.PaidSession{
		"cs_paid":   {ID: "cs_paid", CustomerEmail: "ana@example.pt", Paid: true},
		"cs_unpaid": {ID: "cs_unpaid"},
	}}
	s.auditStore = auditmemory.NewInMemoryStore()
	s.reviews = reviewservice.New(store.NewInMemory(), reviewservice.WithAuditPublisher(publisher.NewPublisher(s.auditStore)))
	breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return s.now }))
	s.service = New(s.reviews, s.verifier,
		WithBreaker(breaker),
		WithAuditPublisher(publisher.NewPublisher(s.auditStore)),
	)
}

func (s *CheckoutServiceSuite) TestExchange() {
	s.Run("first exchange creates a review", func() {
		res, err := s.service.Exchange(s.ctx, "cs_paid")
		s.Require().NoError(err)
		s.True(res.Created)
		s.NotEmpty(res.AccessToken)

		review, err := s.reviews.GetByToken(s.ctx, res.AccessToken)
		s.Require().NoError(err)
		s.Equal("ana@example.pt", review.CustomerEmail)

		events, err := s.auditStore.ListBySubject(s.ctx, review.ID.String())
		s.Require().NoError(err)
		s.Len(events, 2)
		s.Equal(string(audit.EventCheckoutExchanged), events[1].Action)
	})

	s.Run("returning session reuses the token without verifying", func() {
		before := s.verifier.calls
		first, err := s.service.Exchange(s.ctx, "cs_paid")
		s.Require().NoError(err)
		s.False(first.Created)
		s.Equal(before, s.verifier.calls)
	})

	s.Run("unpaid is a bad request", func() {
		_, err := s.service.Exchange(s.ctx, "cs_unpaid")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown is not found", func() {
		_, err := s.service.Exchange(s.ctx, "cs_nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("blank id", func() {
		_, err := s.service.Exchange(s.ctx, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *CheckoutServiceSuite) TestBreakerOpensOnProviderFailures() {
	s.verifier.err = errors.New("connection reset")

	for range 2 {
		_, err := s.service.Exchange(s.ctx, "cs_paid")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	}
	calls := s.verifier.calls

	_, err := s.service.Exchange(s.ctx, "cs_paid")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(calls, s.verifier.calls, "open breaker short-circuits")

	s.verifier.err = nil
	s.now = s.now.Add(2 * time.Minute)
	res, err := s.service.Exchange(s.ctx, "cs_paid")
	s.Require().NoError(err)
	s.True(res.Created)
}

func (s *CheckoutServiceSuite) TestCompleteSession() {
	paid := &verifier.PaidSession{ID: "cs_hook", CustomerEmail: "bo@example.pt", Paid: true}

	first, err := s.service.CompleteSession(s.ctx, paid)
	s.Require().NoError(err)
	again, err := s.service.CompleteSession(s.ctx, paid)
	s.Require().NoError(err)

	s.True(first.Created)
	s.False(again.Created)
	s.Equal(first.AccessToken, again.AccessToken)
	s.Zero(s.verifier.calls)

	_, err = s.service.CompleteSession(s.ctx, &verifier.PaidSession{ID: "cs_pending"})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
