package domain

import (
	"github.com/google/uuid"

	dErrors "expatdesk/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so a review id can never be passed
// where a user id is expected.
type (
	UserID        uuid.UUID
	ReviewID      uuid.UUID
	AppointmentID uuid.UUID
)

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id ReviewID) String() string      { return uuid.UUID(id).String() }
func (id AppointmentID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ReviewID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AppointmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewReviewID returns a fresh random review id.
func NewReviewID() ReviewID { return ReviewID(uuid.New()) }

// NewUserID returns a fresh random user id.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewAppointmentID returns a fresh random appointment id.
func NewAppointmentID() AppointmentID { return AppointmentID(uuid.New()) }

// ParseUserID parses external input into a UserID.
// Errors: CodeInvalidInput when empty, malformed or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseReviewID parses external input into a ReviewID.
func ParseReviewID(s string) (ReviewID, error) {
	u, err := parseUUID(s, "review id")
	return ReviewID(u), err
}

// ParseAppointmentID parses external input into an AppointmentID.
func ParseAppointmentID(s string) (AppointmentID, error) {
	u, err := parseUUID(s, "appointment id")
	return AppointmentID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return u, nil
}
