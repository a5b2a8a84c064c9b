package models

import (
	"time"

	dErrors "expatdesk/pkg/domain-errors"
)

// UpdateRequest carries the arguments of update_review_by_token.
// Status, EscalationFlags and AmbiguityScore are only meaningful on
// submission; the server recomputes flags and score itself.
type UpdateRequest struct {
	FormData        Answers  `json:"form_data"`
	FormProgress    []string `json:"form_progress"`
	Status          string   `json:"status,omitempty"`
	EscalationFlags []string `json:"escalation_flags,omitempty"`
	AmbiguityScore  *int     `json:"ambiguity_score,omitempty"`
}

// IsSubmission reports whether the request finalises the intake.
func (r *UpdateRequest) IsSubmission() bool {
	return r.Status == string(StatusSubmitted)
}

// Validate checks the request shape and returns the parsed progress.
func (r *UpdateRequest) Validate() ([]Section, error) {
	if r.Status != "" && !r.IsSubmission() {
		return nil, dErrors.New(dErrors.CodeValidation, "status may only be set to submitted")
	}
	if err := r.FormData.Validate(); err != nil {
		return nil, err
	}
	if r.AmbiguityScore != nil && *r.AmbiguityScore < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "ambiguity_score must not be negative")
	}
	return ParseSections(r.FormProgress)
}

// CreateRequest opens a review for a paid checkout session.
type CreateRequest struct {
	CheckoutSessionID string
	CustomerEmail     string
}

// TransitionRequest is the operator status change body.
type TransitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ListFilter narrows operator listings.
type ListFilter struct {
	Status Status
	Limit  int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Normalize clamps the limit into range.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
}

// EvaluateRequest is a dry-run assessment body.
type EvaluateRequest struct {
	FormData Answers `json:"form_data"`
}

// Assessment is the evaluator output for one answer set.
type Assessment struct {
	EscalationFlags []EscalationFlag `json:"escalation_flags"`
	AmbiguityScore  int              `json:"ambiguity_score"`
}

// ReviewResponse is the wire shape of a review.
type ReviewResponse struct {
	ID              string     `json:"id"`
	AccessToken     string     `json:"access_token"`
	CustomerEmail   string     `json:"customer_email,omitempty"`
	FormData        Answers    `json:"form_data"`
	FormProgress    []string   `json:"form_progress"`
	Status          string     `json:"status"`
	EscalationFlags []string   `json:"escalation_flags"`
	AmbiguityScore  int        `json:"ambiguity_score"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
}

// ToResponse renders a record for the API.
func ToResponse(r *ReviewRecord) ReviewResponse {
	data := r.FormData
	if data == nil {
		data = Answers{}
	}
	return ReviewResponse{
		ID:              r.ID.String(),
		AccessToken:     r.AccessToken.String(),
		CustomerEmail:   r.CustomerEmail,
		FormData:        data,
		FormProgress:    SectionStrings(r.FormProgress),
		Status:          string(r.Status),
		EscalationFlags: FlagStrings(r.EscalationFlags),
		AmbiguityScore:  r.AmbiguityScore,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		SubmittedAt:     r.SubmittedAt,
	}
}

// ListResponse is the operator listing body.
type ListResponse struct {
	Reviews []ReviewResponse `json:"reviews"`
}
