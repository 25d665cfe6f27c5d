package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"
	"github.com/ncaco/2026-idea-mvp-01/internal/port"
	"github.com/ncaco/2026-idea-mvp-01/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

const healthCheckTimeout = 3 * time.Second

// NewRouter creates the HTTP router with all routes and middleware.
// checkers are probed by /healthz. now is the clock used by /v1/dates and
// defaults to time.Now.
func NewRouter(
	svc *service.Assistant,
	checkers []port.HealthChecker,
	now func() time.Time,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	if now == nil {
		now = time.Now
	}
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(checkers, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.With(BodyLimitMiddleware(maxChatBodyBytes, logger)).Post("/chat", chatHandler(svc, logger))
		r.Get("/chat/ws", chatStreamHandler(svc, logger))
		r.Get("/chat/{conversationId}/history", getHistoryHandler(svc, logger))
		r.Delete("/chat/{conversationId}/history", clearHistoryHandler(svc, logger))

		r.Get("/dates", datesHandler(now, logger))
		r.Get("/metrics/agent", agentMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(checkers []port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		now := time.Now().Format(time.RFC3339)

		services := make([]domain.ServiceHealth, len(checkers)+1)
		services[0] = domain.ServiceHealth{Name: "ledger-assistant", Status: "healthy", LastChecked: now}

		var wg sync.WaitGroup
		for i, c := range checkers {
			wg.Add(1)
			go func(i int, c port.HealthChecker) {
				defer wg.Done()
				start := time.Now()
				err := c.Ping(ctx)
				status := "healthy"
				if err != nil {
					status = "degraded"
					logger.Warn("health check failed", zap.String("service", c.Name()), zap.Error(err))
				}
				services[i+1] = domain.ServiceHealth{
					Name:        c.Name(),
					Status:      status,
					LatencyMs:   time.Since(start).Milliseconds(),
					LastChecked: now,
				}
			}(i, c)
		}
		wg.Wait()

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ============================================================
// Metrics: GET /v1/metrics/agent
// ============================================================

func agentMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAgentSnapshot())
	}
}
