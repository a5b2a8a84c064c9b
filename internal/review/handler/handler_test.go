package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"expatdesk/internal/review/handler/mocks"
	"expatdesk/internal/review/models"
	id "expatdesk/pkg/domain"
	dErrors "expatdesk/pkg/domain-errors"
	"expatdesk/pkg/platform/httputil"
	"expatdesk/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

const operatorToken = "op-token"

type stubValidator struct{}

func (stubValidator) ValidateOperator(token string) (string, error) {
	if token != operatorToken {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return "op-7", nil
}

type ReviewHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	record  *models.ReviewRecord
}

func TestReviewHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReviewHandlerSuite))
}

func (s *ReviewHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, zaptest.NewLogger(s.T()), stubValidator{}).Register(s.router)

	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	r, err := models.NewReviewRecord(id.NewReviewID(), id.NewAccessToken(), "cs_1", "ana@example.pt", now)
	s.Require().NoError(err)
	s.record = r
}

func (s *ReviewHandlerSuite) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ReviewHandlerSuite) decode(rec *httptest.ResponseRecorder, dst any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), dst))
}

func (s *ReviewHandlerSuite) path(suffix string) string {
	return "/reviews/" + s.record.AccessToken.String() + suffix
}

func (s *ReviewHandlerSuite) TestGet() {
	s.Run("returns the review", func() {
		s.service.EXPECT().GetByToken(gomock.Any(), s.record.AccessToken.String()).Return(s.record, nil)

		rec := s.do(http.MethodGet, s.path(""), nil)

		s.Equal(http.StatusOK, rec.Code)
		var resp models.ReviewResponse
		s.decode(rec, &resp)
		s.Equal(s.record.ID.String(), resp.ID)
		s.Equal("form_pending", resp.Status)
		s.Equal([]string{}, resp.EscalationFlags)
	})

	s.Run("maps not found", func() {
		s.service.EXPECT().GetByToken(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "review not found"))

		rec := s.do(http.MethodGet, s.path(""), nil)

		s.Equal(http.StatusNotFound, rec.Code)
		var resp httputil.ErrorResponse
		s.decode(rec, &resp)
		s.Equal("not_found", resp.Error)
		s.Equal("review not found", resp.Description)
	})
}

func (s *ReviewHandlerSuite) TestUpdate() {
	s.Run("passes answers and progress through", func() {
		s.service.EXPECT().UpdateByToken(gomock.Any(), s.record.AccessToken.String(), models.UpdateRequest{
			FormData:     models.Answers{models.KeyArrivalDate: models.Text("2025-09-01")},
			FormProgress: []string{"residency"},
		}).Return(s.record, nil)

		rec := s.do(http.MethodPut, s.path(""), map[string]any{
			"form_data":     map[string]any{"arrival_date": "2025-09-01"},
			"form_progress": []string{"residency"},
		})

		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("unknown question keys are rejected before the service", func() {
		rec := s.do(http.MethodPut, s.path(""), map[string]any{
			"form_data": map[string]any{"favourite_colour": "blue"},
		})

		s.Equal(http.StatusBadRequest, rec.Code)
		var resp httputil.ErrorResponse
		s.decode(rec, &resp)
		s.Equal("validation_error", resp.Error)
	})

	s.Run("malformed json is a bad request", func() {
		req := httptest.NewRequest(http.MethodPut, s.path(""), bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("frozen review is a conflict", func() {
		s.service.EXPECT().UpdateByToken(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "review form is frozen after submission"))

		rec := s.do(http.MethodPut, s.path(""), map[string]any{"form_progress": []string{}})

		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("oversized body is refused before the service", func() {
		rec := s.do(http.MethodPut, s.path(""), map[string]any{
			"form_data": map[string]string{"residency_notes": strings.Repeat("x", httputil.MaxJSONBody)},
		})

		s.Equal(http.StatusRequestEntityTooLarge, rec.Code)
		var resp httputil.ErrorResponse
		s.decode(rec, &resp)
		s.Equal("request_too_large", resp.Error)
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().UpdateByToken(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("db down"), dErrors.CodeInternal, "failed to update review"))

		rec := s.do(http.MethodPut, s.path(""), map[string]any{})

		s.Equal(http.StatusInternalServerError, rec.Code)
		var resp httputil.ErrorResponse
		s.decode(rec, &resp)
		s.Empty(resp.Description)
	})
}

func (s *ReviewHandlerSuite) TestSubmit() {
	s.Run("forces submitted status", func() {
		s.service.EXPECT().UpdateByToken(gomock.Any(), s.record.AccessToken.String(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, req models.UpdateRequest) (*models.ReviewRecord, error) {
				s.True(req.IsSubmission())
				s.True(req.FormData.Is(models.KeyClientType, "b2c_eu"))
				return s.record, nil
			})

		rec := s.do(http.MethodPost, s.path("/submit"), map[string]any{
			"form_data": map[string]any{"client_type": "b2c_eu"},
		})

		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("empty body submits stored answers", func() {
		s.service.EXPECT().UpdateByToken(gomock.Any(), gomock.Any(), models.UpdateRequest{Status: "submitted"}).
			Return(s.record, nil)

		rec := s.do(http.MethodPost, s.path("/submit"), nil)

		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *ReviewHandlerSuite) TestEvaluate() {
	s.service.EXPECT().GetByToken(gomock.Any(), gomock.Any()).Return(s.record, nil)
	s.service.EXPECT().Evaluate(gomock.Any(), models.Answers{models.KeyCryptoActivity: models.Text("active_trading")}).
		Return(models.Assessment{EscalationFlags: []models.EscalationFlag{models.FlagCryptoProfessionalActivity}}, nil)

	rec := s.do(http.MethodPost, s.path("/evaluate"), map[string]any{
		"form_data": map[string]any{"crypto_activity": "active_trading"},
	})

	s.Equal(http.StatusOK, rec.Code)
	var resp models.Assessment
	s.decode(rec, &resp)
	s.Equal([]models.EscalationFlag{models.FlagCryptoProfessionalActivity}, resp.EscalationFlags)
}

func (s *ReviewHandlerSuite) TestOperatorRoutes() {
	auth := []string{"Authorization", "Bearer " + operatorToken}

	s.Run("rejects missing token", func() {
		rec := s.do(http.MethodGet, "/operator/reviews", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("rejects invalid token", func() {
		rec := s.do(http.MethodGet, "/operator/reviews", nil, "Authorization", "Bearer nope")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("lists with filter", func() {
		s.service.EXPECT().List(gomock.Any(), models.ListFilter{Status: models.StatusSubmitted, Limit: 10}).
			Return([]*models.ReviewRecord{s.record}, nil)

		rec := s.do(http.MethodGet, "/operator/reviews?status=submitted&limit=10", nil, auth...)

		s.Equal(http.StatusOK, rec.Code)
		var resp models.ListResponse
		s.decode(rec, &resp)
		s.Len(resp.Reviews, 1)
	})

	s.Run("empty list renders an empty array", func() {
		s.service.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)

		rec := s.do(http.MethodGet, "/operator/reviews", nil, auth...)

		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"reviews":[]}`, rec.Body.String())
	})

	s.Run("bad limit", func() {
		rec := s.do(http.MethodGet, "/operator/reviews?limit=zero", nil, auth...)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("transition carries operator identity", func() {
		s.service.EXPECT().Transition(gomock.Any(), s.record.AccessToken.String(), models.TransitionRequest{Status: "in_review", Reason: "picked up"}).
			DoAndReturn(func(ctx context.Context, _ string, _ models.TransitionRequest) (*models.ReviewRecord, error) {
				s.Equal("op-7", requestcontext.OperatorID(ctx))
				return s.record, nil
			})

		rec := s.do(http.MethodPost, "/operator/reviews/"+s.record.AccessToken.String()+"/status",
			map[string]string{"status": "in_review", "reason": "picked up"}, auth...)

		s.Equal(http.StatusOK, rec.Code)
	})
}
