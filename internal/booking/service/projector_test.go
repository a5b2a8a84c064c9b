package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	bookingmetrics "expatdesk/internal/booking/metrics"
	"expatdesk/internal/booking/models"
	"expatdesk/internal/booking/store"
	id "expatdesk/pkg/domain"
	dErrors "expatdesk/pkg/domain-errors"
	audit "expatdesk/pkg/platform/audit"
	"expatdesk/pkg/platform/audit/publisher"
	auditmemory "expatdesk/pkg/platform/audit/store/memory"
	"expatdesk/pkg/requestcontext"
)

type ProjectorSuite struct {
	suite.Suite
	ctx          context.Context
	now          time.Time
	appointments *store.InMemoryAppointments
	users        *store.InMemoryUsers
	auditStore   *auditmemory.InMemoryStore
	metrics      *bookingmetrics.Metrics
	projector    *Projector
	ana          *models.User
}

func TestProjectorSuite(t *testing.T) {
	suite.Run(t, new(ProjectorSuite))
}

func (s *ProjectorSuite) SetupTest() {
	s.now = time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.appointments = store.NewInMemoryAppointments()
	s.users = store.NewInMemoryUsers()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.metrics = bookingmetrics.NewWithRegisterer(prometheus.NewRegistry())
	s.projector = NewProjector(s.appointments, s.users,
		WithLogger(zaptest.NewLogger(s.T())),
		WithMetrics(s.metrics),
		WithAuditPublisher(publisher.NewPublisher(s.auditStore)),
	)
	s.ana = &models.User{ID: id.NewUserID(), Email: "ana.silva@example.pt", FullName: "Ana Silva", CreatedAt: s.now}
	s.Require().NoError(s.users.Create(s.ctx, s.ana))
}

func event(kind models.EventKind, uid string, attendees ...models.Attendee) models.WebhookEvent {
	start := time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	return models.WebhookEvent{
		TriggerEvent: kind,
		Payload: models.BookingPayload{
			UID:       uid,
			Title:     "Compliance review call",
			StartTime: &start,
			EndTime:   &end,
			Attendees: attendees,
			Metadata:  models.BookingMetadata{VideoCallURL: "https://meet.example/abc"},
		},
	}
}

func (s *ProjectorSuite) TestStatusTable() {
	cases := []struct {
		kind models.EventKind
		want models.AppointmentStatus
	}{
		{models.EventBookingCreated, models.StatusScheduled},
		{models.EventBookingRequested, models.StatusRequested},
		{models.EventBookingRescheduled, models.StatusRescheduled},
		{models.EventBookingCancelled, models.StatusCancelled},
		{models.EventMeetingStarted, models.StatusInProgress},
		{models.EventMeetingEnded, models.StatusCompleted},
	}
	for _, tc := range cases {
		s.Run(string(tc.kind), func() {
			out, err := s.projector.Apply(s.ctx, event(tc.kind, "uid-"+string(tc.kind)))
			s.Require().NoError(err)
			s.True(out.Created)
			s.Equal(tc.want, out.Appointment.Status)
			s.Equal(tc.kind, out.Appointment.LastEvent)
		})
	}
}

func (s *ProjectorSuite) TestLifecycleUpdatesOneRow() {
	created, err := s.projector.Apply(s.ctx, event(models.EventBookingCreated, "bk-1",
		models.Attendee{Email: "  Ana.Silva@EXAMPLE.pt", Name: ""}))
	s.Require().NoError(err)
	s.Require().NotNil(created.Appointment.UserID)
	s.Equal(s.ana.ID, *created.Appointment.UserID)
	s.Equal("Ana Silva", created.Appointment.AttendeeName)
	s.Equal("https://meet.example/abc", created.Appointment.MeetingURL)

	resched := event(models.EventBookingRescheduled, "bk-1", models.Attendee{Email: "ana.silva@example.pt", Name: "Ana"})
	newStart := time.Date(2026, 4, 22, 9, 0, 0, 0, time.UTC)
	resched.Payload.StartTime = &newStart
	resched.Payload.RescheduleUID = "bk-0"
	out, err := s.projector.Apply(s.ctx, resched)
	s.Require().NoError(err)
	s.False(out.Created)
	s.Equal(created.Appointment.ID, out.Appointment.ID)
	s.Equal(newStart, *out.Appointment.StartTime)
	s.Equal("bk-0", out.Appointment.RescheduledFromUID)

	started := models.WebhookEvent{TriggerEvent: models.EventMeetingStarted, Payload: models.BookingPayload{UID: "bk-1"}}
	out, err = s.projector.Apply(s.ctx, started)
	s.Require().NoError(err)
	s.Require().NotNil(out.Appointment.StartedAt)
	s.Equal(s.now, *out.Appointment.StartedAt)
	s.Equal("Compliance review call", out.Appointment.Title, "lifecycle events keep booking details")
	s.Equal(s.ana.ID, *out.Appointment.UserID)

	ended := models.WebhookEvent{TriggerEvent: models.EventMeetingEnded, Payload: models.BookingPayload{UID: "bk-1"}}
	out, err = s.projector.Apply(s.ctx, ended)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, out.Appointment.Status)
	s.NotNil(out.Appointment.EndedAt)

	stored, err := s.appointments.FindByBookingUID(s.ctx, "bk-1")
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, stored.Status)
	s.Equal(created.Appointment.CreatedAt, stored.CreatedAt)

	events, err := s.auditStore.ListBySubject(s.ctx, created.Appointment.ID.String())
	s.Require().NoError(err)
	s.Len(events, 4)
	s.Equal(string(audit.EventBookingProjected), events[0].Action)
	s.Equal(audit.CategoryOperations, events[0].Category)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.EventsProjected.WithLabelValues("BOOKING_CREATED", "created")))
}

func (s *ProjectorSuite) TestCancellationReason() {
	ev := event(models.EventBookingCancelled, "bk-2")
	ev.Payload.CancellationReason = "  travelling "
	out, err := s.projector.Apply(s.ctx, ev)
	s.Require().NoError(err)
	s.Equal("travelling", out.Appointment.CancellationReason)
}

func (s *ProjectorSuite) TestUnlinkedAttendees() {
	s.Run("no attendees", func() {
		out, err := s.projector.Apply(s.ctx, event(models.EventBookingCreated, "bk-none"))
		s.Require().NoError(err)
		s.Nil(out.Appointment.UserID)
		s.Empty(out.Appointment.AttendeeEmail)
	})

	s.Run("unknown email", func() {
		out, err := s.projector.Apply(s.ctx, event(models.EventBookingCreated, "bk-stranger",
			models.Attendee{Email: "joao-pereira@example.com"}))
		s.Require().NoError(err)
		s.Nil(out.Appointment.UserID)
		s.Equal("Joao Pereira", out.Appointment.AttendeeName)
	})
}

func (s *ProjectorSuite) TestIgnoredAndInvalid() {
	out, err := s.projector.Apply(s.ctx, models.WebhookEvent{TriggerEvent: "BOOKING_PAID", Payload: models.BookingPayload{UID: "bk-3"}})
	s.Require().NoError(err)
	s.True(out.Ignored)
	_, err = s.appointments.FindByBookingUID(s.ctx, "bk-3")
	s.Error(err)

	_, err = s.projector.Apply(s.ctx, models.WebhookEvent{TriggerEvent: models.EventBookingCreated})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

type brokenUsers struct{}

func (brokenUsers) FindByEmail(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func (s *ProjectorSuite) TestStoreFailureIsInternal() {
	p := NewProjector(s.appointments, brokenUsers{})
	_, err := p.Apply(s.ctx, event(models.EventBookingCreated, "bk-4", models.Attendee{Email: "x@example.pt"}))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
