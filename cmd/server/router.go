package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"expatdesk/internal/platform/metrics"
	"expatdesk/internal/platform/middleware"
	"expatdesk/pkg/platform/httputil"
	"expatdesk/pkg/platform/middleware/metadata"
	"expatdesk/pkg/platform/middleware/requesttime"
)

type registrar interface {
	Register(r chi.Router)
}

// limited mounts a module inside a group guarded by mw.
type limited struct {
	registrar
	mw func(http.Handler) http.Handler
}

func (l limited) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(l.mw)
		l.registrar.Register(r)
	})
}

// newRouter applies the shared middleware stack and mounts every module. A
// nil resolver trusts no forwarding headers.
func newRouter(logger *zap.Logger, m *metrics.Metrics, clients *metadata.Resolver, health func(r *http.Request) error, modules ...registrar) chi.Router {
	clientIP := metadata.ClientMetadata
	if clients != nil {
		clientIP = clients.Middleware
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(requesttime.Middleware)
	r.Use(clientIP)
	r.Use(middleware.LatencyMiddleware(m))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := health(req); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	for _, m := range modules {
		m.Register(r)
	}
	return r
}
