// Package intake drives the client side of the intake wizard: an in-memory
// draft, periodic autosave and the transport to the review API.
package intake

import (
	"context"

	"expatdesk/internal/review/models"
)

// Snapshot is the remote state a draft resumes from.
type Snapshot struct {
	FormData     models.Answers
	FormProgress []models.Section
	Status       models.Status
}

// SaveRequest is one write of the draft to the review API.
type SaveRequest struct {
	FormData        models.Answers
	FormProgress    []models.Section
	Submit          bool
	EscalationFlags []models.EscalationFlag
	AmbiguityScore  int
}

// Port is the remote review store as seen by the wizard.
type Port interface {
	Load(ctx context.Context, token string) (*Snapshot, error)
	Save(ctx context.Context, token string, req SaveRequest) error
}
