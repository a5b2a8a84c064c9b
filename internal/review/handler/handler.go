// Package handler exposes review operations over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"expatdesk/internal/platform/middleware"
	"expatdesk/internal/review/models"
	dErrors "expatdesk/pkg/domain-errors"
	"expatdesk/pkg/platform/httputil"
)

// Service defines the review operations the handler needs.
type Service interface {
	GetByToken(ctx context.Context, token string) (*models.ReviewRecord, error)
	UpdateByToken(ctx context.Context, token string, req models.UpdateRequest) (*models.ReviewRecord, error)
	Transition(ctx context.Context, token string, req models.TransitionRequest) (*models.ReviewRecord, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.ReviewRecord, error)
	Evaluate(ctx context.Context, answers models.Answers) (models.Assessment, error)
}

// Handler serves the client intake and operator review routes.
type Handler struct {
	service   Service
	logger    *zap.Logger
	validator middleware.OperatorValidator
}

// New creates a review Handler.
func New(service Service, logger *zap.Logger, validator middleware.OperatorValidator) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:   service,
		logger:    logger,
		validator: validator,
	}
}

// Register registers the review routes. Client routes are addressed by the
// bearer-less access token; operator routes require an operator JWT.
func (h *Handler) Register(r chi.Router) {
	r.Route("/reviews/{token}", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Get("/", h.handleGet)
		r.Put("/", h.handleUpdate)
		r.Post("/submit", h.handleSubmit)
		r.Post("/evaluate", h.handleEvaluate)
	})
	r.Route("/operator/reviews", func(r chi.Router) {
		r.Use(middleware.RequireOperator(h.validator, h.logger))
		r.Use(middleware.ContentTypeJSON)
		r.Get("/", h.handleList)
		r.Post("/{token}/status", h.handleTransition)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, err := h.service.GetByToken(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, "failed to load review", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(record))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "invalid update request", err)
		return
	}
	h.update(w, r, req)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			h.writeError(w, r, "invalid submit request", err)
			return
		}
	}
	req.Status = string(models.StatusSubmitted)
	h.update(w, r, req)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, req models.UpdateRequest) {
	record, err := h.service.UpdateByToken(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		h.writeError(w, r, "failed to update review", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(record))
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.service.GetByToken(ctx, chi.URLParam(r, "token")); err != nil {
		h.writeError(w, r, "failed to load review", err)
		return
	}
	var req models.EvaluateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "invalid evaluate request", err)
		return
	}
	assessment, err := h.service.Evaluate(ctx, req.FormData)
	if err != nil {
		h.writeError(w, r, "failed to evaluate answers", err)
		return
	}
	if assessment.EscalationFlags == nil {
		assessment.EscalationFlags = []models.EscalationFlag{}
	}
	httputil.WriteJSON(w, http.StatusOK, assessment)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ListFilter{Status: models.Status(q.Get("status"))}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.writeError(w, r, "invalid list request", dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}
	records, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, "failed to list reviews", err)
		return
	}
	resp := models.ListResponse{Reviews: make([]models.ReviewResponse, 0, len(records))}
	for _, rec := range records {
		resp.Reviews = append(resp.Reviews, models.ToResponse(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req models.TransitionRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "invalid status request", err)
		return
	}
	record, err := h.service.Transition(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		h.writeError(w, r, "failed to change review status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(record))
}

// writeError logs client faults at warn and everything else at error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Error(err),
	}
	if status := httputil.StatusFor(dErrors.CodeOf(err)); status >= http.StatusInternalServerError {
		h.logger.Error(msg, fields...)
	} else {
		h.logger.Warn(msg, fields...)
	}
	httputil.WriteError(w, err)
}
