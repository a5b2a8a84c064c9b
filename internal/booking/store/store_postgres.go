package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"expatdesk/internal/booking/models"
	id "expatdesk/pkg/domain"
	"expatdesk/pkg/email"
	"expatdesk/pkg/platform/sentinel"
	txcontext "expatdesk/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresAppointments persists the appointments table.
type PostgresAppointments struct {
	db *sql.DB
}

func NewPostgresAppointments(db *sql.DB) *PostgresAppointments {
	return &PostgresAppointments{db: db}
}

const appointmentColumns = `id, booking_uid, user_id, attendee_email, attendee_name, title,
	start_time, end_time, meeting_url, status, cancellation_reason, rescheduled_from_uid,
	started_at, ended_at, last_event, created_at, updated_at`

// FindByBookingUID locks the row when called inside a transaction.
func (s *PostgresAppointments) FindByBookingUID(ctx context.Context, uid string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE booking_uid = $1`
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	a, err := scanAppointment(txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return a, err
}

func (s *PostgresAppointments) Upsert(ctx context.Context, a *models.Appointment) error {
	query := `INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (booking_uid) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			attendee_email = EXCLUDED.attendee_email,
			attendee_name = EXCLUDED.attendee_name,
			title = EXCLUDED.title,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			meeting_url = EXCLUDED.meeting_url,
			status = EXCLUDED.status,
			cancellation_reason = EXCLUDED.cancellation_reason,
			rescheduled_from_uid = EXCLUDED.rescheduled_from_uid,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			last_event = EXCLUDED.last_event,
			updated_at = EXCLUDED.updated_at`
	var userID any
	if a.UserID != nil {
		userID = uuid.UUID(*a.UserID)
	}
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(a.ID),
		a.BookingUID,
		userID,
		a.AttendeeEmail,
		a.AttendeeName,
		a.Title,
		a.StartTime,
		a.EndTime,
		a.MeetingURL,
		string(a.Status),
		a.CancellationReason,
		a.RescheduledFromUID,
		a.StartedAt,
		a.EndedAt,
		string(a.LastEvent),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert appointment: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var (
		appointmentID uuid.UUID
		userID        uuid.NullUUID
		start, end    sql.NullTime
		started       sql.NullTime
		ended         sql.NullTime
		status        string
		lastEvent     string
		a             models.Appointment
	)
	err := row.Scan(
		&appointmentID,
		&a.BookingUID,
		&userID,
		&a.AttendeeEmail,
		&a.AttendeeName,
		&a.Title,
		&start,
		&end,
		&a.MeetingURL,
		&status,
		&a.CancellationReason,
		&a.RescheduledFromUID,
		&started,
		&ended,
		&lastEvent,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	a.ID = id.AppointmentID(appointmentID)
	if userID.Valid {
		u := id.UserID(userID.UUID)
		a.UserID = &u
	}
	a.Status = models.AppointmentStatus(status)
	a.LastEvent = models.EventKind(lastEvent)
	a.StartTime = timePtr(start)
	a.EndTime = timePtr(end)
	a.StartedAt = timePtr(started)
	a.EndedAt = timePtr(ended)
	return &a, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// PostgresUsers reads and writes the users table.
type PostgresUsers struct {
	db *sql.DB
}

func NewPostgresUsers(db *sql.DB) *PostgresUsers {
	return &PostgresUsers{db: db}
}

func (s *PostgresUsers) Create(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (id, email, full_name, created_at) VALUES ($1, $2, $3, $4)`
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(u.ID), email.Normalize(u.Email), u.FullName, u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUsers) FindByEmail(ctx context.Context, address string) (*models.User, error) {
	query := `SELECT id, email, full_name, created_at FROM users WHERE lower(email) = $1`
	return s.scanUser(txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, email.Normalize(address)))
}

func (s *PostgresUsers) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := `SELECT id, email, full_name, created_at FROM users WHERE id = $1`
	return s.scanUser(txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(userID)))
}

func (s *PostgresUsers) scanUser(row *sql.Row) (*models.User, error) {
	var (
		userID uuid.UUID
		u      models.User
	)
	if err := row.Scan(&userID, &u.Email, &u.FullName, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id.UserID(userID)
	return &u, nil
}
