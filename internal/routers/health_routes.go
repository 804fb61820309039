package routers

import (
	"mockmate/interview/internal/handlers"
	"mockmate/interview/internal/metrics"

	"github.com/go-chi/chi/v5"
)

func HealthRoutes(router *chi.Mux, healthHandler *handlers.HealthHandler) {
	router.Get("/healthz", healthHandler.LivenessHandler)
	router.Get("/readyz", healthHandler.ReadinessHandler)
	router.Handle("/metrics", metrics.Handler())
}
