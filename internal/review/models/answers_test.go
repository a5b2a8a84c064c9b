package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "expatdesk/pkg/domain-errors"
)

func TestCatalog_Shape(t *testing.T) {
	assert.Len(t, Catalog, 26)
	assert.Len(t, Sections, 7)

	perSection := map[Section]int{}
	for _, q := range Catalog {
		require.True(t, q.Section.IsValid(), q.Key)
		perSection[q.Section]++
	}
	for _, s := range Sections[:6] {
		assert.Equal(t, 4, perSection[s], s)
	}
	assert.Equal(t, 2, perSection[SectionDeclaration])
}

func TestAnswers_JSONFlatShape(t *testing.T) {
	answers := Answers{
		KeyOtherTaxResidencies:   Text("yes"),
		KeyTaxResidencyCountries: Multi{"ES", "FR"},
		KeyAccuracyConfirmation:  Flag(true),
	}

	raw, err := json.Marshal(answers)
	require.NoError(t, err)
	assert.JSONEq(t, `{"other_tax_residencies":"yes","tax_residency_countries":["ES","FR"],"accuracy_confirmation":true}`, string(raw))

	var decoded Answers
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, answers, decoded)
}

func TestAnswers_UnmarshalRejectsUnknownKey(t *testing.T) {
	var a Answers
	err := json.Unmarshal([]byte(`{"favourite_colour":"blue"}`), &a)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestAnswers_UnmarshalRejectsKindMismatch(t *testing.T) {
	cases := []string{
		`{"other_tax_residencies":["yes"]}`,
		`{"cae_codes":"62010"}`,
		`{"accuracy_confirmation":"yes"}`,
		`{"estimated_annual_turnover":30000}`,
	}
	for _, c := range cases {
		var a Answers
		err := json.Unmarshal([]byte(c), &a)
		require.Error(t, err, c)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), c)
	}
}

func TestAnswers_UnmarshalSkipsNullValues(t *testing.T) {
	var a Answers
	require.NoError(t, json.Unmarshal([]byte(`{"nif_status":null,"client_type":"b2b_pt"}`), &a))
	assert.Equal(t, Answers{KeyClientType: Text("b2b_pt")}, a)
}

func TestAnswers_ChoiceOptionsNotEnforced(t *testing.T) {
	var a Answers
	require.NoError(t, json.Unmarshal([]byte(`{"client_type":"something_new"}`), &a))
	assert.True(t, a.Is(KeyClientType, "something_new"))
}

func TestAnswers_Validate(t *testing.T) {
	assert.NoError(t, Answers{KeyArrivalDate: Text("2024-01-15")}.Validate())
	assert.Error(t, Answers{KeyArrivalDate: Flag(true)}.Validate())
	assert.Error(t, Answers{QuestionKey("nope"): Text("x")}.Validate())
}

func TestAnswers_CloneIsDeep(t *testing.T) {
	orig := Answers{KeyCAECodes: Multi{"62010"}}
	c := orig.Clone()
	c[KeyCAECodes].(Multi)[0] = "changed"
	assert.Equal(t, "62010", orig.Multi(KeyCAECodes)[0])
}

func TestAnswersFromValues(t *testing.T) {
	a, err := AnswersFromValues(map[string]any{
		"nif_status":             "resident_nif",
		"foreign_income_sources": []any{"dividends", "interest"},
		"accuracy_confirmation":  true,
		"additional_notes":       nil,
	})
	require.NoError(t, err)
	assert.Equal(t, Answers{
		KeyNIFStatus:            Text("resident_nif"),
		KeyForeignIncomeSources: Multi{"dividends", "interest"},
		KeyAccuracyConfirmation: Flag(true),
	}, a)

	_, err = AnswersFromValues(map[string]any{"foreign_income_sources": []any{1}})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
