package models

import (
	"fmt"
	"time"

	id "expatdesk/pkg/domain"
	dErrors "expatdesk/pkg/domain-errors"
)

// Status is the lifecycle state of a paid review.
type Status string

const (
	StatusFormPending Status = "form_pending"
	StatusSubmitted   Status = "submitted"
	StatusInReview    Status = "in_review"
	StatusCompleted   Status = "completed"
	StatusEscalated   Status = "escalated"
)

var allowedTransitions = map[Status][]Status{
	StatusFormPending: {StatusSubmitted},
	StatusSubmitted:   {StatusInReview, StatusEscalated},
	StatusInReview:    {StatusCompleted, StatusEscalated},
	StatusEscalated:   {StatusInReview, StatusCompleted},
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusFormPending, StatusSubmitted, StatusInReview, StatusCompleted, StatusEscalated:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown status %q", s))
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

func (s Status) String() string { return string(s) }

// ReviewRecord is the paid compliance review aggregate.
type ReviewRecord struct {
	ID                id.ReviewID
	AccessToken       id.AccessToken
	CheckoutSessionID string
	CustomerEmail     string
	FormData          Answers
	FormProgress      []Section
	Status            Status
	EscalationFlags   []EscalationFlag
	AmbiguityScore    int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	SubmittedAt       *time.Time
}

// NewReviewRecord creates a review awaiting its intake form.
func NewReviewRecord(reviewID id.ReviewID, token id.AccessToken, checkoutSessionID, customerEmail string, now time.Time) (*ReviewRecord, error) {
	if reviewID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "review id is required")
	}
	if token == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "access token is required")
	}
	return &ReviewRecord{
		ID:                reviewID,
		AccessToken:       token,
		CheckoutSessionID: checkoutSessionID,
		CustomerEmail:     customerEmail,
		FormData:          Answers{},
		FormProgress:      []Section{},
		Status:            StatusFormPending,
		EscalationFlags:   []EscalationFlag{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// CanUpdateForm checks that answers are still editable.
func (r *ReviewRecord) CanUpdateForm() error {
	if r.Status != StatusFormPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "review form is frozen after submission")
	}
	return nil
}

// ApplyFormUpdate replaces the answers and unions progress.
func (r *ReviewRecord) ApplyFormUpdate(answers Answers, progress []Section, now time.Time) {
	r.FormData = answers.Clone()
	if r.FormData == nil {
		r.FormData = Answers{}
	}
	r.FormProgress = MergeProgress(r.FormProgress, progress)
	r.UpdatedAt = now
}

// CanSubmit checks that the intake can be finalised.
func (r *ReviewRecord) CanSubmit() error {
	if !r.Status.CanTransitionTo(StatusSubmitted) {
		return dErrors.New(dErrors.CodeInvariantViolation, "review already submitted")
	}
	return nil
}

// ApplySubmission freezes the form with the given assessment.
func (r *ReviewRecord) ApplySubmission(flags []EscalationFlag, score int, now time.Time) {
	r.Status = StatusSubmitted
	r.FormProgress = AllSections()
	r.EscalationFlags = append([]EscalationFlag{}, flags...)
	r.AmbiguityScore = score
	r.UpdatedAt = now
	submitted := now
	r.SubmittedAt = &submitted
}

// CanTransitionTo checks an operator status change.
func (r *ReviewRecord) CanTransitionTo(next Status) error {
	if r.Status == StatusFormPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "review has not been submitted")
	}
	if !r.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("cannot move review from %s to %s", r.Status, next))
	}
	return nil
}

// ApplyTransition moves the review to next.
func (r *ReviewRecord) ApplyTransition(next Status, now time.Time) {
	r.Status = next
	r.UpdatedAt = now
}

// Clone deep-copies the record so stores never share mutable state.
func (r *ReviewRecord) Clone() *ReviewRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.FormData = r.FormData.Clone()
	c.FormProgress = append([]Section{}, r.FormProgress...)
	c.EscalationFlags = append([]EscalationFlag{}, r.EscalationFlags...)
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		c.SubmittedAt = &t
	}
	return &c
}
