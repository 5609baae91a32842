package ops

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/pkg/metrics"
)

// NewRouter builds the chi router for the ops endpoint.
//
// Middleware: request id, real IP extraction, request logging through the
// internal logger, panic recovery, and a request timeout.
//
// Routes:
//   - GET /health        liveness probe
//   - GET /health/live   liveness probe (kubelet-style alias)
//   - GET /health/ready  readiness probe
//   - GET /metrics       Prometheus scrape handler (404 when disabled)
func NewRouter(component string, ready ReadyCheck) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := newHealthHandler(component, ready)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.liveness)
		r.Get("/live", h.liveness)
		r.Get("/ready", h.readiness)
	})

	// Mounted unconditionally: the handler serves 404 until metrics are
	// initialized.
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// newMetricsRouter serves only the Prometheus scrape handler, for the
// standalone metrics listener.
func newMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

// requestLogger logs requests through the internal logger: start at DEBUG,
// completion with status and duration at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("Ops request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("Ops request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
