package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expatdesk/internal/intake"
	jwttoken "expatdesk/internal/jwt_token"
	"expatdesk/internal/review/handler"
	"expatdesk/internal/review/models"
	"expatdesk/internal/review/service"
	"expatdesk/internal/review/store"
	dErrors "expatdesk/pkg/domain-errors"
)

const answersDoc = `
other_tax_residencies: "yes"
client_type: b2c_eu
nif_status: not_sure
crypto_activity: professional_trading
accuracy_confirmation: true
`

func writeAnswers(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(answersDoc), 0o600))
	return path
}

func TestEvaluateCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"evaluate", "--file", writeAnswers(t)})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Ambiguity score: 1")
	assert.Contains(t, out.String(), string(models.FlagMultiJurisdictionResidency))
	assert.Contains(t, out.String(), string(models.FlagComplexVATScenario))
}

func TestEvaluateCommand_RequiresFile(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"evaluate"})
	assert.Error(t, cmd.Execute())
}

func TestOperatorTokenCommand(t *testing.T) {
	t.Setenv("EXPATDESK_ENV", "development")
	t.Setenv("OPERATOR_JWT_SIGNING_KEY", "test-key")

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"operator-token", "--subject", "op-42", "--ttl", "1m"})
	require.NoError(t, cmd.Execute())

	raw := bytes.TrimSpace(out.Bytes())
	subject, err := jwttoken.NewJWTService("test-key", "expatdesk", "expatdesk-operators").ValidateOperator(string(raw))
	require.NoError(t, err)
	assert.Equal(t, "op-42", subject)
}

func TestFill(t *testing.T) {
	svc := service.New(store.NewInMemory())
	r := chi.NewRouter()
	handler.New(svc, nil, nil).Register(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx := context.Background()
	review, _, err := svc.Create(ctx, models.CreateRequest{CheckoutSessionID: "cs_cli"})
	require.NoError(t, err)
	token := review.AccessToken.String()

	answers, err := intake.LoadAnswersFile(writeAnswers(t))
	require.NoError(t, err)
	port := intake.NewHTTPPort(srv.URL, srv.Client())

	t.Run("walks every section and submits", func(t *testing.T) {
		var out bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&out)

		err := fill(ctx, cmd, port, token, answers, true, intake.WithInterval(time.Hour))
		require.NoError(t, err)

		stored, err := svc.GetByToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSubmitted, stored.Status)
		assert.Equal(t, models.AllSections(), stored.FormProgress)
		assert.Equal(t, models.Text("b2c_eu"), stored.FormData[models.KeyClientType])
		assert.Equal(t, 1, stored.AmbiguityScore)
		assert.Contains(t, out.String(), "saved residency")
		assert.Contains(t, out.String(), "submitted")
	})

	t.Run("refuses a submitted review", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.SetOut(&bytes.Buffer{})
		err := fill(ctx, cmd, port, token, answers, true)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
