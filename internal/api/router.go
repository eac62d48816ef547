package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/birdhouse-core/internal/metrics"
)

// healthCheckTimeout bounds each dependency check in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", metrics.Handler(s.gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/weather", func(r chi.Router) {
			r.Get("/now", s.handleWeatherNow)
			r.Get("/summary", s.handleWeatherSummary)
			r.Get("/{period}", s.handleWeatherPeriod)
		})

		if s.water != nil {
			r.Route("/water-temp", func(r chi.Router) {
				r.Get("/now", s.handleWaterTempNow)
				r.Get("/{period}", s.handleWaterTempPeriod)
			})
		}

		r.Route("/outlets", func(r chi.Router) {
			r.Get("/", s.handleListOutlets)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetOutlet)
				r.Get("/events", s.handleListOutletEvents)
			})
		})

		r.Post("/motion", s.handleMotion)
	})

	return r
}

// handleHealth reports the server and its dependencies. Any failing
// dependency turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		if err := s.db.HealthCheck(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
		cancel()
	}
	if s.mqtt != nil {
		if s.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
		}
	}

	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"checks":  checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
