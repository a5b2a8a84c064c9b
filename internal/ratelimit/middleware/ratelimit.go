// Package middleware applies per-client request budgets to route groups.
package middleware

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"expatdesk/internal/ratelimit/models"
	"expatdesk/pkg/platform/httputil"
	"expatdesk/pkg/requestcontext"
)

// Limiter checks and records one request against a bucket.
type Limiter interface {
	Allow(ctx context.Context, key string, policy models.Policy) (*models.RateLimitResult, error)
}

// KeyFunc picks the identity a budget is charged to.
type KeyFunc func(r *http.Request) string

func clientIP(r *http.Request) string { return requestcontext.ClientIP(r.Context()) }

type Middleware struct {
	limiter  Limiter
	logger   *zap.Logger
	keyOf    KeyFunc
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

// WithKeyFunc charges budgets to something other than the client IP.
func WithKeyFunc(fn KeyFunc) Option {
	return func(m *Middleware) {
		if fn != nil {
			m.keyOf = fn
		}
	}
}

func New(limiter Limiter, logger *zap.Logger, opts ...Option) *Middleware {
	m := &Middleware{limiter: limiter, logger: logger, keyOf: clientIP}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		m.logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit wraps a route group with the budget for class. When the limiter
// itself fails the request is let through.
func (m *Middleware) RateLimit(class models.EndpointClass, policy models.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.disabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.admit(w, r, class, policy) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

func (m *Middleware) admit(w http.ResponseWriter, r *http.Request, class models.EndpointClass, policy models.Policy) bool {
	who := m.keyOf(r)
	res, err := m.limiter.Allow(r.Context(), models.Key(class, who), policy)
	if err != nil {
		m.logger.Error("rate limit check failed, allowing request",
			zap.String("class", string(class)), zap.Error(err))
		return true
	}

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if res.Allowed {
		return true
	}

	m.logger.Warn("rate limit exceeded",
		zap.String("class", string(class)),
		zap.String("client", who),
		zap.Int("retry_after", res.RetryAfter))
	h.Set("Retry-After", strconv.Itoa(res.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Try again in " + strconv.Itoa(res.RetryAfter) + " seconds.",
		RetryAfter: res.RetryAfter,
	})
	return false
}
