package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"expatdesk/internal/review/models"
	"expatdesk/internal/review/rules"
	id "expatdesk/pkg/domain"
	dErrors "expatdesk/pkg/domain-errors"
	audit "expatdesk/pkg/platform/audit"
	"expatdesk/pkg/platform/sentinel"
	"expatdesk/pkg/requestcontext"
)

// GetByToken returns the review addressed by token.
func (s *Service) GetByToken(ctx context.Context, rawToken string) (record *models.ReviewRecord, err error) {
	ctx, span := s.startSpan(ctx, "GetByToken")
	defer func() { endSpan(span, err) }()

	token, err := parseToken(rawToken)
	if err != nil {
		return nil, err
	}
	record, err = s.store.FindByToken(ctx, token)
	if err != nil {
		return nil, wrapReviewErr(err, "load review")
	}
	return record, nil
}

// UpdateByToken saves intake answers. Answers are replaced wholesale and
// progress is unioned with what is stored. A request with status
// "submitted" freezes the form: progress is forced complete and flags and
// score are recomputed from the stored answers.
func (s *Service) UpdateByToken(ctx context.Context, rawToken string, req models.UpdateRequest) (record *models.ReviewRecord, err error) {
	ctx, span := s.startSpan(ctx, "UpdateByToken", attribute.Bool("submission", req.IsSubmission()))
	defer func() { endSpan(span, err) }()
	start := time.Now()
	defer s.metrics.ObserveUpdate(start)

	token, err := parseToken(rawToken)
	if err != nil {
		return nil, err
	}
	progress, err := req.Validate()
	if err != nil {
		return nil, err
	}
	if req.IsSubmission() {
		return s.submit(ctx, token, req, progress)
	}

	now := requestcontext.Now(ctx)
	record, err = s.store.Execute(ctx, token,
		func(r *models.ReviewRecord) error {
			return r.CanUpdateForm()
		},
		func(r *models.ReviewRecord) {
			r.ApplyFormUpdate(answersOrStored(req.FormData, r), progress, now)
		},
	)
	if err != nil {
		return nil, wrapReviewErr(err, "update review")
	}
	return record, nil
}

func (s *Service) submit(ctx context.Context, token id.AccessToken, req models.UpdateRequest, progress []models.Section) (*models.ReviewRecord, error) {
	now := requestcontext.Now(ctx)
	var (
		record     *models.ReviewRecord
		assessment models.Assessment
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.store.Execute(txCtx, token,
			func(r *models.ReviewRecord) error {
				if err := r.CanUpdateForm(); err != nil {
					return err
				}
				return r.CanSubmit()
			},
			func(r *models.ReviewRecord) {
				r.ApplyFormUpdate(answersOrStored(req.FormData, r), progress, now)
				assessment = rules.Assess(r.FormData)
				r.ApplySubmission(assessment.EscalationFlags, assessment.AmbiguityScore, now)
			},
		)
		if err != nil {
			return err
		}
		record = r
		return s.emit(txCtx, audit.Event{
			Subject: r.ID.String(),
			Action:  string(audit.EventReviewSubmitted),
			Details: map[string]string{
				"escalation_flags": strings.Join(models.FlagStrings(assessment.EscalationFlags), ","),
				"ambiguity_score":  strconv.Itoa(assessment.AmbiguityScore),
			},
		})
	})
	if err != nil {
		return nil, wrapReviewErr(err, "submit review")
	}

	s.logAssessmentMismatch(ctx, record, req, assessment)
	s.metrics.ObserveSubmission(models.FlagStrings(assessment.EscalationFlags), assessment.AmbiguityScore)
	s.logger.Info("review submitted",
		zap.String("review_id", record.ID.String()),
		zap.Strings("escalation_flags", models.FlagStrings(assessment.EscalationFlags)),
		zap.Int("ambiguity_score", assessment.AmbiguityScore),
		zap.String("request_id", requestcontext.RequestID(ctx)),
	)
	return record, nil
}

// logAssessmentMismatch notes when the client's own assessment disagrees
// with the server's. The server result is always the one stored.
func (s *Service) logAssessmentMismatch(ctx context.Context, record *models.ReviewRecord, req models.UpdateRequest, got models.Assessment) {
	var fields []zap.Field
	if req.EscalationFlags != nil {
		clientFlags := models.ParseFlags(req.EscalationFlags)
		if !models.SameFlags(clientFlags, got.EscalationFlags) {
			fields = append(fields, zap.Strings("client_flags", req.EscalationFlags))
		}
	}
	if req.AmbiguityScore != nil && *req.AmbiguityScore != got.AmbiguityScore {
		fields = append(fields, zap.Int("client_score", *req.AmbiguityScore))
	}
	if len(fields) == 0 {
		return
	}
	fields = append(fields,
		zap.String("review_id", record.ID.String()),
		zap.Strings("server_flags", models.FlagStrings(got.EscalationFlags)),
		zap.Int("server_score", got.AmbiguityScore),
		zap.String("request_id", requestcontext.RequestID(ctx)),
	)
	s.logger.Warn("client assessment differs from server assessment", fields...)
}

func answersOrStored(incoming models.Answers, r *models.ReviewRecord) models.Answers {
	if incoming == nil {
		return r.FormData
	}
	return incoming
}

// Create opens a form_pending review for a paid checkout session. Repeated
// calls for the same session return the existing review; created reports
// whether this call made it.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (record *models.ReviewRecord, created bool, err error) {
	ctx, span := s.startSpan(ctx, "Create")
	defer func() { endSpan(span, err) }()

	req.CheckoutSessionID = strings.TrimSpace(req.CheckoutSessionID)
	if req.CheckoutSessionID != "" {
		existing, err := s.store.FindByCheckoutSession(ctx, req.CheckoutSessionID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, false, wrapReviewErr(err, "load review")
		}
	}

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := models.NewReviewRecord(id.NewReviewID(), id.NewAccessToken(), req.CheckoutSessionID, strings.TrimSpace(req.CustomerEmail), now)
		if err != nil {
			return err
		}
		if err := s.store.Create(txCtx, r); err != nil {
			return err
		}
		record = r
		return s.emit(txCtx, audit.Event{
			Subject: r.ID.String(),
			Action:  string(audit.EventReviewCreated),
			Details: map[string]string{"checkout_session_id": req.CheckoutSessionID},
		})
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) && req.CheckoutSessionID != "" {
		// A concurrent exchange for the same session won.
		existing, findErr := s.store.FindByCheckoutSession(ctx, req.CheckoutSessionID)
		if findErr != nil {
			return nil, false, wrapReviewErr(findErr, "load review")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, wrapReviewErr(err, "create review")
	}
	s.metrics.IncrementCreated()
	return record, true, nil
}

// Transition applies an operator status change.
func (s *Service) Transition(ctx context.Context, rawToken string, req models.TransitionRequest) (record *models.ReviewRecord, err error) {
	ctx, span := s.startSpan(ctx, "Transition", attribute.String("to", req.Status))
	defer func() { endSpan(span, err) }()

	operatorID := requestcontext.OperatorID(ctx)
	if operatorID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "operator identity required")
	}
	token, err := parseToken(rawToken)
	if err != nil {
		return nil, err
	}
	next, err := models.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if next == models.StatusSubmitted || next == models.StatusFormPending {
		return nil, dErrors.New(dErrors.CodeValidation, "operators cannot set status "+string(next))
	}

	now := requestcontext.Now(ctx)
	var from models.Status
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.store.Execute(txCtx, token,
			func(r *models.ReviewRecord) error {
				from = r.Status
				return r.CanTransitionTo(next)
			},
			func(r *models.ReviewRecord) {
				r.ApplyTransition(next, now)
			},
		)
		if err != nil {
			return err
		}
		record = r
		return s.emit(txCtx, audit.Event{
			Subject: r.ID.String(),
			Action:  string(audit.EventReviewStatusChanged),
			ActorID: operatorID,
			Reason:  strings.TrimSpace(req.Reason),
			Details: map[string]string{"from": string(from), "to": string(next)},
		})
	})
	if err != nil {
		return nil, wrapReviewErr(err, "change review status")
	}
	s.metrics.IncrementTransition(string(next))
	s.logger.Info("review status changed",
		zap.String("review_id", record.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.String("operator_id", operatorID),
	)
	return record, nil
}

// List returns reviews for the operator queue.
func (s *Service) List(ctx context.Context, filter models.ListFilter) (records []*models.ReviewRecord, err error) {
	ctx, span := s.startSpan(ctx, "List", attribute.String("status", string(filter.Status)))
	defer func() { endSpan(span, err) }()

	if filter.Status != "" {
		if _, err := models.ParseStatus(string(filter.Status)); err != nil {
			return nil, err
		}
	}
	records, err = s.store.List(ctx, filter)
	if err != nil {
		return nil, wrapReviewErr(err, "list reviews")
	}
	return records, nil
}

// Evaluate assesses an answer set without persisting anything.
func (s *Service) Evaluate(_ context.Context, answers models.Answers) (models.Assessment, error) {
	if err := answers.Validate(); err != nil {
		return models.Assessment{}, err
	}
	return rules.Assess(answers), nil
}

// FindByCheckoutSession returns the review created for a checkout session.
func (s *Service) FindByCheckoutSession(ctx context.Context, sessionID string) (record *models.ReviewRecord, err error) {
	ctx, span := s.startSpan(ctx, "FindByCheckoutSession")
	defer func() { endSpan(span, err) }()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "checkout session id is required")
	}
	record, err = s.store.FindByCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, wrapReviewErr(err, "load review")
	}
	return record, nil
}
