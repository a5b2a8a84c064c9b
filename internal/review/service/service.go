// Package service implements the token-addressed review operations.
package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	reviewmetrics "expatdesk/internal/review/metrics"
	"expatdesk/internal/review/models"
	id "expatdesk/pkg/domain"
	dErrors "expatdesk/pkg/domain-errors"
	audit "expatdesk/pkg/platform/audit"
	"expatdesk/pkg/platform/sentinel"
	"expatdesk/pkg/platform/tx"
)

// Store persists review records.
type Store interface {
	Create(ctx context.Context, r *models.ReviewRecord) error
	FindByToken(ctx context.Context, token id.AccessToken) (*models.ReviewRecord, error)
	FindByCheckoutSession(ctx context.Context, sessionID string) (*models.ReviewRecord, error)
	Execute(ctx context.Context, token id.AccessToken, validate func(*models.ReviewRecord) error, mutate func(*models.ReviewRecord)) (*models.ReviewRecord, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.ReviewRecord, error)
}

// AuditPublisher records audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// StoreTx runs a unit of work. Store and audit writes inside fn commit
// together on Postgres.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service orchestrates the review lifecycle.
type Service struct {
	store          Store
	tx             StoreTx
	logger         *zap.Logger
	auditPublisher AuditPublisher
	metrics        *reviewmetrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *reviewmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTx(runner StoreTx) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     tx.NoopRunner{},
		logger: zap.NewNop(),
		tracer: otel.Tracer("expatdesk/review"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "review."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func parseToken(raw string) (id.AccessToken, error) {
	token, err := id.ParseAccessToken(raw)
	if err != nil {
		return "", err
	}
	return token, nil
}

// wrapReviewErr translates store and aggregate errors into API codes.
func wrapReviewErr(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "review not found")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		var de *dErrors.Error
		errors.As(err, &de)
		return dErrors.New(dErrors.CodeConflict, de.Message)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}
