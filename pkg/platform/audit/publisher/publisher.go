// Package publisher stamps and persists audit events.
package publisher

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	audit "expatdesk/pkg/platform/audit"
	"expatdesk/pkg/requestcontext"
)

// Publisher fills in event metadata from the request context and appends
// the event to its store. Emit runs synchronously so a Postgres outbox
// write joins the caller's transaction.
type Publisher struct {
	store  audit.Store
	logger *zap.Logger
}

type Option func(*Publisher)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records event. Missing ID, timestamp, category, request id and
// actor are derived from ctx.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event action is required")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.OperatorID(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		p.logger.Error("failed to append audit event",
			zap.String("action", event.Action),
			zap.String("subject", event.Subject),
			zap.Error(err),
		)
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// List returns the events recorded for subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}
