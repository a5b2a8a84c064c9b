package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// Compliance events need long retention; operations events can be sampled.
type EventCategory string

const (
	// CategoryCompliance covers events with legal or billing significance:
	// paid review creation, submission and operator decisions.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity such as redirect exchanges
	// and booking projections.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so the outbox and Kafka relay can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	// Subject identifies the aggregate: a review id or booking uid.
	Subject   string
	Action    string
	ActorID   string
	RequestID string
	Reason    string
	Details   map[string]string
}

type AuditEvent string

const (
	EventReviewCreated       AuditEvent = "review_created"
	EventReviewSubmitted     AuditEvent = "review_submitted"
	EventReviewStatusChanged AuditEvent = "review_status_changed"
	EventCheckoutExchanged   AuditEvent = "checkout_exchanged"
	EventBookingProjected    AuditEvent = "booking_projected"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventReviewCreated:       CategoryCompliance,
	EventReviewSubmitted:     CategoryCompliance,
	EventReviewStatusChanged: CategoryCompliance,
	EventCheckoutExchanged:   CategoryOperations,
	EventBookingProjected:    CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Implementations join the caller's transaction
// when one is present in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
