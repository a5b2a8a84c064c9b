package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "expatdesk/pkg/domain-errors"
)

func TestParseIDs(t *testing.T) {
	valid := "0b8f3c2e-5d1a-4e7b-9c6f-2a4d8e1b7c30"
	parsers := map[string]func(string) (string, error){
		"user": func(s string) (string, error) {
			id, err := ParseUserID(s)
			return id.String(), err
		},
		"review": func(s string) (string, error) {
			id, err := ParseReviewID(s)
			return id.String(), err
		},
		"appointment": func(s string) (string, error) {
			id, err := ParseAppointmentID(s)
			return id.String(), err
		},
	}
	rejected := map[string]string{
		"empty":         "",
		"malformed":     "review-42",
		"nil uuid":      uuid.Nil.String(),
		"braced":        "{" + valid + "}",
		"urn":           "urn:uuid:" + valid,
		"trailing junk": valid + "x",
	}

	for kind, parse := range parsers {
		t.Run(kind, func(t *testing.T) {
			got, err := parse(valid)
			require.NoError(t, err)
			assert.Equal(t, valid, got)

			upper, err := parse(strings.ToUpper(valid))
			require.NoError(t, err)
			assert.Equal(t, valid, upper, "canonical form is lower case")

			for name, input := range rejected {
				_, err := parse(input)
				assert.Truef(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "%s: %v", name, err)
			}
		})
	}
}

func TestParseIDErrorNamesTheKind(t *testing.T) {
	_, err := ParseAppointmentID("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "appointment id is required")

	_, err = ParseReviewID("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid review id")
}

func TestNewIDs(t *testing.T) {
	r1, r2 := NewReviewID(), NewReviewID()
	assert.False(t, r1.IsNil())
	assert.NotEqual(t, r1, r2)
	assert.False(t, NewUserID().IsNil())
	assert.False(t, NewAppointmentID().IsNil())

	var zero ReviewID
	assert.True(t, zero.IsNil())

	parsed, err := ParseReviewID(r1.String())
	require.NoError(t, err)
	assert.Equal(t, r1, parsed)
}

func TestAccessToken(t *testing.T) {
	t.Run("minted tokens parse and differ", func(t *testing.T) {
		a, b := NewAccessToken(), NewAccessToken()
		assert.NotEqual(t, a, b)
		assert.Len(t, a.String(), 32)
		got, err := ParseAccessToken(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	})

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"empty", "", false},
		{"too short", "abc123", false},
		{"minimum length", strings.Repeat("a", 16), true},
		{"maximum length", strings.Repeat("B", 128), true},
		{"too long", strings.Repeat("B", 129), false},
		{"dash and underscore", "tok_live-0123456789", true},
		{"path separator", "tok/live/0123456789", false},
		{"query chars", "tok?live=0123456789", false},
		{"unicode", "tökenlive0123456789", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := ParseAccessToken(tt.input)
			if !tt.ok {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, tok.String())
		})
	}
}
