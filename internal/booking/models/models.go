// Package models holds the appointment projection of scheduling-provider
// booking events.
package models

import (
	"strings"
	"time"

	id "expatdesk/pkg/domain"
)

// EventKind is the provider's trigger event.
type EventKind string

const (
	EventBookingCreated     EventKind = "BOOKING_CREATED"
	EventBookingRescheduled EventKind = "BOOKING_RESCHEDULED"
	EventBookingCancelled   EventKind = "BOOKING_CANCELLED"
	EventBookingRequested   EventKind = "BOOKING_REQUESTED"
	EventMeetingStarted     EventKind = "MEETING_STARTED"
	EventMeetingEnded       EventKind = "MEETING_ENDED"
)

var statusForEvent = map[EventKind]AppointmentStatus{
	EventBookingCreated:     StatusScheduled,
	EventBookingRequested:   StatusRequested,
	EventBookingRescheduled: StatusRescheduled,
	EventBookingCancelled:   StatusCancelled,
	EventMeetingStarted:     StatusInProgress,
	EventMeetingEnded:       StatusCompleted,
}

// IsKnown reports whether the projector handles k.
func (k EventKind) IsKnown() bool {
	_, ok := statusForEvent[k]
	return ok
}

// Status returns the appointment status k produces.
func (k EventKind) Status() AppointmentStatus {
	return statusForEvent[k]
}

type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusRequested   AppointmentStatus = "requested"
	StatusRescheduled AppointmentStatus = "rescheduled"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusInProgress  AppointmentStatus = "in_progress"
	StatusCompleted   AppointmentStatus = "completed"
)

// WebhookEvent is the provider's webhook envelope.
type WebhookEvent struct {
	TriggerEvent EventKind      `json:"triggerEvent"`
	CreatedAt    time.Time      `json:"createdAt"`
	Payload      BookingPayload `json:"payload"`
}

type Attendee struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	TimeZone string `json:"timeZone,omitempty"`
}

type BookingMetadata struct {
	VideoCallURL string `json:"videoCallUrl,omitempty"`
}

type BookingPayload struct {
	UID                string          `json:"uid"`
	Title              string          `json:"title"`
	StartTime          *time.Time      `json:"startTime,omitempty"`
	EndTime            *time.Time      `json:"endTime,omitempty"`
	Attendees          []Attendee      `json:"attendees"`
	Location           string          `json:"location,omitempty"`
	Metadata           BookingMetadata `json:"metadata"`
	RescheduleUID      string          `json:"rescheduleUid,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
}

// FirstAttendee returns the booking's primary attendee, if any.
func (p BookingPayload) FirstAttendee() (Attendee, bool) {
	if len(p.Attendees) == 0 {
		return Attendee{}, false
	}
	return p.Attendees[0], true
}

// MeetingURL prefers the video call link over a free-form location.
func (p BookingPayload) MeetingURL() string {
	if p.Metadata.VideoCallURL != "" {
		return p.Metadata.VideoCallURL
	}
	if strings.HasPrefix(p.Location, "http://") || strings.HasPrefix(p.Location, "https://") {
		return p.Location
	}
	return ""
}

// User is a local account an appointment can be linked to.
type User struct {
	ID        id.UserID
	Email     string
	FullName  string
	CreatedAt time.Time
}

// Appointment is one row per provider booking.
type Appointment struct {
	ID                 id.AppointmentID
	BookingUID         string
	UserID             *id.UserID
	AttendeeEmail      string
	AttendeeName       string
	Title              string
	StartTime          *time.Time
	EndTime            *time.Time
	MeetingURL         string
	Status             AppointmentStatus
	CancellationReason string
	RescheduledFromUID string
	StartedAt          *time.Time
	EndedAt            *time.Time
	LastEvent          EventKind
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewAppointment starts a projection row for a booking uid.
func NewAppointment(appointmentID id.AppointmentID, bookingUID string, now time.Time) *Appointment {
	return &Appointment{
		ID:         appointmentID,
		BookingUID: bookingUID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Apply folds one event into the row. Fields the event does not carry keep
// their previous values, so out-of-order lifecycle events never erase
// booking details.
func (a *Appointment) Apply(kind EventKind, p BookingPayload, userID *id.UserID, attendeeName string, at time.Time) {
	a.Status = kind.Status()
	a.LastEvent = kind
	a.UpdatedAt = at
	if userID != nil {
		u := *userID
		a.UserID = &u
	}
	if att, ok := p.FirstAttendee(); ok {
		a.AttendeeEmail = strings.TrimSpace(att.Email)
		a.AttendeeName = attendeeName
	}
	if p.Title != "" {
		a.Title = p.Title
	}
	if url := p.MeetingURL(); url != "" {
		a.MeetingURL = url
	}
	if p.StartTime != nil {
		a.StartTime = copyTime(p.StartTime)
	}
	if p.EndTime != nil {
		a.EndTime = copyTime(p.EndTime)
	}

	switch kind {
	case EventBookingRescheduled:
		if p.RescheduleUID != "" {
			a.RescheduledFromUID = p.RescheduleUID
		}
	case EventBookingCancelled:
		a.CancellationReason = strings.TrimSpace(p.CancellationReason)
	case EventMeetingStarted:
		a.StartedAt = copyTime(&at)
	case EventMeetingEnded:
		a.EndedAt = copyTime(&at)
	}
}

// Clone deep-copies the row.
func (a *Appointment) Clone() *Appointment {
	if a == nil {
		return nil
	}
	c := *a
	if a.UserID != nil {
		u := *a.UserID
		c.UserID = &u
	}
	c.StartTime = copyTime(a.StartTime)
	c.EndTime = copyTime(a.EndTime)
	c.StartedAt = copyTime(a.StartedAt)
	c.EndedAt = copyTime(a.EndedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Outcome reports what the projector did with an event.
type Outcome struct {
	Appointment *Appointment
	Created     bool
	Ignored     bool
}

// AppointmentResponse is the wire shape of a projected appointment.
type AppointmentResponse struct {
	ID         string     `json:"id"`
	BookingUID string     `json:"booking_uid"`
	UserID     string     `json:"user_id,omitempty"`
	Status     string     `json:"status"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	LastEvent  string     `json:"last_event"`
}

func ToResponse(a *Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:         a.ID.String(),
		BookingUID: a.BookingUID,
		Status:     string(a.Status),
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
		LastEvent:  string(a.LastEvent),
	}
	if a.UserID != nil {
		resp.UserID = a.UserID.String()
	}
	return resp
}
