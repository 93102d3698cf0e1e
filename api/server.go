/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logging:    One zap line per request, with the request ID
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/employees/*       Employees, history, load payments
  /api/change-requests/* Batch configuration changes
  /api/payment-methods   Payment model catalogue
  /api/scenarios/*       Demo data (development only)
  /healthz               Liveness and database check
  /metrics               Prometheus exposition

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig carries the wiring NewRouter needs beyond the handler.
type RouterConfig struct {
	AllowedOrigins []string

	// Registry receives the HTTP metrics and is served on /metrics.
	// Nil disables both.
	Registry *prometheus.Registry
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	var requests *prometheus.CounterVec
	if cfg.Registry != nil {
		requests = promauto.With(cfg.Registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "driverpay",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status.",
		}, []string{"method", "route", "status"})
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger, requests))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/history", h.GetHistory)
			r.Get("/{id}/active", h.GetActive)
			r.Post("/{id}/payments", h.CalculatePayment)
		})

		r.Route("/change-requests", func(r chi.Router) {
			r.Post("/validate", h.ValidateChangeRequest)
			r.Post("/apply", h.ApplyChangeRequest)
		})

		r.Get("/payment-methods", h.ListPaymentMethods)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs each request once it completes and counts it when
// requests is non-nil.
func requestLogger(logger *zap.Logger, requests *prometheus.CounterVec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := "unmatched"
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}

				logger.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("route", route),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
				if requests != nil {
					requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
