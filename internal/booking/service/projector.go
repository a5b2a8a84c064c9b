// Package service projects scheduling-provider booking events onto the
// appointments table.
package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	bookingmetrics "expatdesk/internal/booking/metrics"
	"expatdesk/internal/booking/models"
	id "expatdesk/pkg/domain"
	dErrors "expatdesk/pkg/domain-errors"
	"expatdesk/pkg/email"
	audit "expatdesk/pkg/platform/audit"
	"expatdesk/pkg/platform/sentinel"
	"expatdesk/pkg/platform/tx"
	"expatdesk/pkg/requestcontext"
)

type AppointmentStore interface {
	FindByBookingUID(ctx context.Context, uid string) (*models.Appointment, error)
	Upsert(ctx context.Context, a *models.Appointment) error
}

type UserDirectory interface {
	FindByEmail(ctx context.Context, address string) (*models.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Projector applies webhook events to appointment rows.
type Projector struct {
	appointments   AppointmentStore
	users          UserDirectory
	tx             StoreTx
	logger         *zap.Logger
	metrics        *bookingmetrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
}

type Option func(*Projector)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Projector) { p.logger = logger }
}

func WithMetrics(m *bookingmetrics.Metrics) Option {
	return func(p *Projector) { p.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(p *Projector) { p.auditPublisher = publisher }
}

func WithTx(runner StoreTx) Option {
	return func(p *Projector) { p.tx = runner }
}

func NewProjector(appointments AppointmentStore, users UserDirectory, opts ...Option) *Projector {
	p := &Projector{
		appointments: appointments,
		users:        users,
		tx:           tx.NoopRunner{},
		logger:       zap.NewNop(),
		tracer:       otel.Tracer("expatdesk/booking"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply projects one event. Unknown trigger events are reported as ignored
// and touch nothing.
func (p *Projector) Apply(ctx context.Context, event models.WebhookEvent) (out models.Outcome, err error) {
	ctx, span := p.tracer.Start(ctx, "booking.Apply", trace.WithAttributes(
		attribute.String("event", string(event.TriggerEvent)),
		attribute.String("booking_uid", event.Payload.UID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "projection failed")
		}
		span.End()
	}()

	kind := event.TriggerEvent
	if !kind.IsKnown() {
		p.metrics.IncrementEvent(string(kind), "ignored")
		p.logger.Info("ignoring booking event", zap.String("event", string(kind)))
		return models.Outcome{Ignored: true}, nil
	}
	uid := strings.TrimSpace(event.Payload.UID)
	if uid == "" {
		p.metrics.IncrementEvent(string(kind), "failed")
		return models.Outcome{}, dErrors.New(dErrors.CodeBadRequest, "booking uid is required")
	}

	now := requestcontext.Now(ctx)
	err = p.tx.RunInTx(ctx, func(txCtx context.Context) error {
		userID, attendeeName, err := p.resolveAttendee(txCtx, event.Payload)
		if err != nil {
			return err
		}
		a, err := p.appointments.FindByBookingUID(txCtx, uid)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			a = models.NewAppointment(id.NewAppointmentID(), uid, now)
			out.Created = true
		case err != nil:
			return err
		}
		a.Apply(kind, event.Payload, userID, attendeeName, now)
		if err := p.appointments.Upsert(txCtx, a); err != nil {
			return err
		}
		out.Appointment = a
		if p.auditPublisher == nil {
			return nil
		}
		return p.auditPublisher.Emit(txCtx, audit.Event{
			Subject: a.ID.String(),
			Action:  string(audit.EventBookingProjected),
			Details: map[string]string{
				"booking_uid": uid,
				"event":       string(kind),
				"status":      string(a.Status),
			},
		})
	})
	if err != nil {
		p.metrics.IncrementEvent(string(kind), "failed")
		return models.Outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to project booking event")
	}

	outcome := "updated"
	if out.Created {
		outcome = "created"
	}
	p.metrics.IncrementEvent(string(kind), outcome)
	p.logger.Info("booking event projected",
		zap.String("event", string(kind)),
		zap.String("booking_uid", uid),
		zap.String("status", string(out.Appointment.Status)),
		zap.Bool("linked_user", out.Appointment.UserID != nil),
	)
	return out, nil
}

// resolveAttendee links the first attendee to a local user by email. A
// booking without attendees, or from an unknown address, has no user.
func (p *Projector) resolveAttendee(ctx context.Context, payload models.BookingPayload) (*id.UserID, string, error) {
	att, ok := payload.FirstAttendee()
	if !ok {
		return nil, "", nil
	}
	name := strings.TrimSpace(att.Name)
	if name == "" {
		name = email.DeriveNameFromEmail(att.Email)
	}
	if strings.TrimSpace(att.Email) == "" {
		return nil, name, nil
	}
	user, err := p.users.FindByEmail(ctx, att.Email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, name, nil
	}
	if err != nil {
		return nil, "", err
	}
	return &user.ID, name, nil
}
