package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "expatdesk/pkg/domain"
	dErrors "expatdesk/pkg/domain-errors"
)

var now = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func newRecord(t *testing.T) *ReviewRecord {
	t.Helper()
	r, err := NewReviewRecord(id.NewReviewID(), id.NewAccessToken(), "cs_test_1", "ana@example.pt", now)
	require.NoError(t, err)
	return r
}

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusFormPending, StatusSubmitted, true},
		{StatusFormPending, StatusInReview, false},
		{StatusSubmitted, StatusInReview, true},
		{StatusSubmitted, StatusEscalated, true},
		{StatusSubmitted, StatusCompleted, false},
		{StatusInReview, StatusCompleted, true},
		{StatusInReview, StatusEscalated, true},
		{StatusEscalated, StatusInReview, true},
		{StatusEscalated, StatusCompleted, true},
		{StatusCompleted, StatusInReview, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusEscalated.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("in_review")
	require.NoError(t, err)
	assert.Equal(t, StatusInReview, st)

	_, err = ParseStatus("archived")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestNewReviewRecord_Invariants(t *testing.T) {
	_, err := NewReviewRecord(id.ReviewID{}, id.NewAccessToken(), "", "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewReviewRecord(id.NewReviewID(), "", "", "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	r := newRecord(t)
	assert.Equal(t, StatusFormPending, r.Status)
	assert.Empty(t, r.FormProgress)
	assert.NotNil(t, r.EscalationFlags)
}

func TestReviewRecord_FormUpdateUnionsProgress(t *testing.T) {
	r := newRecord(t)
	require.NoError(t, r.CanUpdateForm())

	r.ApplyFormUpdate(Answers{KeyNIFStatus: Text("no_nif")}, []Section{SectionTaxResidency}, now)
	r.ApplyFormUpdate(Answers{KeyArrivalDate: Text("2024-01-01")}, []Section{SectionResidency}, now.Add(time.Minute))

	assert.Equal(t, []Section{SectionResidency, SectionTaxResidency}, r.FormProgress)
	assert.Equal(t, Answers{KeyArrivalDate: Text("2024-01-01")}, r.FormData, "answers are replaced wholesale")
	assert.Equal(t, now.Add(time.Minute), r.UpdatedAt)
}

func TestReviewRecord_SubmissionFreezesForm(t *testing.T) {
	r := newRecord(t)
	require.NoError(t, r.CanSubmit())
	r.ApplySubmission([]EscalationFlag{FlagCryptoProfessionalActivity}, 2, now)

	assert.Equal(t, StatusSubmitted, r.Status)
	assert.True(t, IsComplete(r.FormProgress))
	require.NotNil(t, r.SubmittedAt)
	assert.Equal(t, now, *r.SubmittedAt)
	assert.Equal(t, 2, r.AmbiguityScore)

	assert.True(t, dErrors.HasCode(r.CanUpdateForm(), dErrors.CodeInvariantViolation))
	assert.True(t, dErrors.HasCode(r.CanSubmit(), dErrors.CodeInvariantViolation))
}

func TestReviewRecord_OperatorTransition(t *testing.T) {
	r := newRecord(t)
	assert.Error(t, r.CanTransitionTo(StatusInReview), "pending reviews cannot be picked up")

	r.ApplySubmission(nil, 0, now)
	require.NoError(t, r.CanTransitionTo(StatusEscalated))
	r.ApplyTransition(StatusEscalated, now)
	require.NoError(t, r.CanTransitionTo(StatusCompleted))
	r.ApplyTransition(StatusCompleted, now)
	assert.Error(t, r.CanTransitionTo(StatusInReview))
}

func TestReviewRecord_CloneIsIndependent(t *testing.T) {
	r := newRecord(t)
	r.ApplySubmission([]EscalationFlag{FlagComplexVATScenario}, 0, now)
	c := r.Clone()
	c.EscalationFlags[0] = FlagCryptoProfessionalActivity
	*c.SubmittedAt = now.Add(time.Hour)
	c.FormProgress[0] = SectionDeclaration

	assert.Equal(t, FlagComplexVATScenario, r.EscalationFlags[0])
	assert.Equal(t, now, *r.SubmittedAt)
	assert.Equal(t, SectionResidency, r.FormProgress[0])
}

func TestProgress(t *testing.T) {
	got, err := ParseSections([]string{"declaration", "residency", "residency"})
	require.NoError(t, err)
	assert.Equal(t, []Section{SectionResidency, SectionDeclaration}, got)

	_, err = ParseSections([]string{"banking"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	merged := MergeProgress([]Section{SectionInvestments}, []Section{SectionResidency})
	assert.Equal(t, []Section{SectionResidency, SectionInvestments}, merged)
	assert.False(t, IsComplete(merged))
	assert.True(t, IsComplete(AllSections()))
}

func TestUpdateRequest_Validate(t *testing.T) {
	req := UpdateRequest{Status: "in_review"}
	_, err := req.Validate()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	neg := -1
	req = UpdateRequest{AmbiguityScore: &neg}
	_, err = req.Validate()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	req = UpdateRequest{Status: "submitted", FormProgress: []string{"residency"}}
	progress, err := req.Validate()
	require.NoError(t, err)
	assert.True(t, req.IsSubmission())
	assert.Equal(t, []Section{SectionResidency}, progress)
}

func TestSameFlags(t *testing.T) {
	assert.True(t, SameFlags(
		[]EscalationFlag{FlagComplexVATScenario, FlagA1CertificateMissing},
		[]EscalationFlag{FlagA1CertificateMissing, FlagComplexVATScenario}))
	assert.False(t, SameFlags([]EscalationFlag{FlagComplexVATScenario}, nil))
}
