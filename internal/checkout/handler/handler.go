// Package handler exposes the payment redirect exchange and the payment
// provider webhook.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"expatdesk/internal/checkout/service"
	"expatdesk/internal/checkout/verifier"
	"expatdesk/internal/platform/middleware"
	dErrors "expatdesk/pkg/domain-errors"
	"expatdesk/pkg/platform/httputil"
)

const maxWebhookBody = 64 << 10

type Service interface {
	Exchange(ctx context.Context, sessionID string) (*service.Result, error)
	CompleteSession(ctx context.Context, paid *verifier.PaidSession) (*service.Result, error)
}

type Handler struct {
	service       Service
	logger        *zap.Logger
	webhookSecret string
}

// New creates a checkout Handler. The webhook route is only served when
// webhookSecret is set.
func New(svc Service, logger *zap.Logger, webhookSecret string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: svc, logger: logger, webhookSecret: webhookSecret}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/checkout/sessions/{sessionID}", h.handleExchange)
	if h.webhookSecret != "" {
		r.Post("/webhooks/stripe", h.handleStripeWebhook)
	}
}

func (h *Handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.Exchange(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.logger.Warn("checkout exchange failed",
			zap.String("request_id", middleware.GetRequestID(ctx)),
			zap.Error(err),
		)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, result)
}

func (h *Handler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read body"))
		return
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("stripe webhook rejected", zap.String("request_id", requestID), zap.Error(err))
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid webhook signature"))
		return
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid checkout session payload"))
		return
	}
	paid := verifier.FromStripe(&cs)
	if !paid.Paid {
		// Delayed payment methods complete before funds arrive.
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "pending"})
		return
	}
	if _, err := h.service.CompleteSession(ctx, paid); err != nil {
		h.logger.Error("stripe webhook processing failed",
			zap.String("request_id", requestID),
			zap.String("session_id", paid.ID),
			zap.Error(err),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
