package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"expatdesk/internal/review/models"
	id "expatdesk/pkg/domain"
	"expatdesk/pkg/platform/sentinel"
)

var baseTime = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func newReview(checkout string, at time.Time) *models.ReviewRecord {
	r, err := models.NewReviewRecord(id.NewReviewID(), id.NewAccessToken(), checkout, "ana@example.pt", at)
	if err != nil {
		panic(err)
	}
	return r
}

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemorySuite) TestCreateAndFind() {
	r := newReview("cs_1", baseTime)
	s.Require().NoError(s.store.Create(s.ctx, r))

	byToken, err := s.store.FindByToken(s.ctx, r.AccessToken)
	s.Require().NoError(err)
	s.Equal(r.ID, byToken.ID)

	byCheckout, err := s.store.FindByCheckoutSession(s.ctx, "cs_1")
	s.Require().NoError(err)
	s.Equal(r.AccessToken, byCheckout.AccessToken)
}

func (s *InMemorySuite) TestNotFound() {
	_, err := s.store.FindByToken(s.ctx, id.NewAccessToken())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByCheckoutSession(s.ctx, "cs_missing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Execute(s.ctx, id.NewAccessToken(),
		func(*models.ReviewRecord) error { return nil },
		func(*models.ReviewRecord) {})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestCreateRejectsDuplicates() {
	r := newReview("cs_dup", baseTime)
	s.Require().NoError(s.store.Create(s.ctx, r))
	s.ErrorIs(s.store.Create(s.ctx, r), sentinel.ErrAlreadyUsed)

	other := newReview("cs_dup", baseTime)
	s.ErrorIs(s.store.Create(s.ctx, other), sentinel.ErrAlreadyUsed)
}

func (s *InMemorySuite) TestReturnedRecordsAreCopies() {
	r := newReview("", baseTime)
	s.Require().NoError(s.store.Create(s.ctx, r))
	r.Status = models.StatusCompleted

	found, err := s.store.FindByToken(s.ctx, r.AccessToken)
	s.Require().NoError(err)
	s.Equal(models.StatusFormPending, found.Status)

	found.FormData[models.KeyNIFStatus] = models.Text("no_nif")
	again, _ := s.store.FindByToken(s.ctx, r.AccessToken)
	s.Empty(again.FormData)
}

func (s *InMemorySuite) TestExecuteValidationFailureLeavesRecord() {
	r := newReview("", baseTime)
	s.Require().NoError(s.store.Create(s.ctx, r))

	boom := errors.New("nope")
	_, err := s.store.Execute(s.ctx, r.AccessToken,
		func(*models.ReviewRecord) error { return boom },
		func(rec *models.ReviewRecord) { rec.Status = models.StatusSubmitted })
	s.ErrorIs(err, boom)

	found, _ := s.store.FindByToken(s.ctx, r.AccessToken)
	s.Equal(models.StatusFormPending, found.Status)
}

func (s *InMemorySuite) TestExecuteSerializesWriters() {
	r := newReview("", baseTime)
	s.Require().NoError(s.store.Create(s.ctx, r))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.store.Execute(s.ctx, r.AccessToken,
				func(*models.ReviewRecord) error { return nil },
				func(rec *models.ReviewRecord) { rec.AmbiguityScore++ })
		}()
	}
	wg.Wait()

	found, _ := s.store.FindByToken(s.ctx, r.AccessToken)
	s.Equal(50, found.AmbiguityScore)
}

func (s *InMemorySuite) TestListFiltersAndOrders() {
	older := newReview("", baseTime)
	newer := newReview("", baseTime.Add(time.Hour))
	submitted := newReview("", baseTime.Add(2*time.Hour))
	submitted.ApplySubmission(nil, 0, baseTime.Add(2*time.Hour))
	for _, r := range []*models.ReviewRecord{older, newer, submitted} {
		s.Require().NoError(s.store.Create(s.ctx, r))
	}

	all, err := s.store.List(s.ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(submitted.ID, all[0].ID)
	s.Equal(older.ID, all[2].ID)

	pending, err := s.store.List(s.ctx, models.ListFilter{Status: models.StatusFormPending, Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(newer.ID, pending[0].ID)
}
