// Package handler receives scheduling-provider webhooks.
package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"expatdesk/internal/booking/models"
	"expatdesk/internal/platform/middleware"
	dErrors "expatdesk/pkg/domain-errors"
	"expatdesk/pkg/platform/httputil"
)

const (
	SignatureHeader = "X-Cal-Signature-256"
	maxWebhookBody  = 256 << 10
)

type Projector interface {
	Apply(ctx context.Context, event models.WebhookEvent) (models.Outcome, error)
}

type Handler struct {
	projector Projector
	logger    *zap.Logger
	secret    []byte
}

// New creates the webhook handler. An empty secret disables signature
// verification.
func New(projector Projector, logger *zap.Logger, secret string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{projector: projector, logger: logger, secret: []byte(secret)}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/cal", h.handleWebhook)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.fail(w, requestID, "", err)
		return
	}
	if len(h.secret) > 0 && !h.validSignature(body, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("booking webhook signature rejected", zap.String("request_id", requestID))
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid webhook signature"))
		return
	}

	var event models.WebhookEvent
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&event); err != nil {
		h.fail(w, requestID, "", err)
		return
	}

	out, err := h.projector.Apply(ctx, event)
	if err != nil {
		h.fail(w, requestID, string(event.TriggerEvent), err)
		return
	}
	if out.Ignored {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "processed",
		"appointment": models.ToResponse(out.Appointment),
	})
}

// fail answers 500 for every processing error, malformed payloads included,
// so the provider retries delivery.
func (h *Handler) fail(w http.ResponseWriter, requestID, trigger string, err error) {
	h.logger.Error("booking webhook failed",
		zap.String("request_id", requestID),
		zap.String("event", trigger),
		zap.Error(err),
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to process webhook"))
}

func (h *Handler) validSignature(body []byte, header string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if err != nil || len(got) == 0 {
		return false
	}
	return hmac.Equal(got, Sign(h.secret, body))
}

// Sign computes the webhook signature of body.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
