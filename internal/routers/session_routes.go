package routers

import (
	"mockmate/interview/internal/handlers"
	"mockmate/interview/internal/middleware"
	"mockmate/interview/internal/models"

	"github.com/go-chi/chi/v5"
)

func SessionRoutes(router *chi.Mux, sessionHandler *handlers.SessionHandler, subscriptionHandler *handlers.SubscriptionHandler, jwtSecret string) {
	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtSecret))

		r.With(middleware.ValidateRequest[*models.CreateSessionRequest]()).Post("/", sessionHandler.CreateHandler)
		r.Get("/{id}", sessionHandler.GetHandler)
		r.Post("/{id}/start", sessionHandler.StartHandler)
		r.With(middleware.ValidateRequest[*models.PauseSessionRequest]()).Post("/{id}/pause", sessionHandler.PauseHandler)
		r.Post("/{id}/resume", sessionHandler.ResumeHandler)
		r.Post("/{id}/complete", sessionHandler.CompleteHandler)
		r.With(middleware.ValidateRequest[*models.IncompleteSessionRequest]()).Post("/{id}/incomplete", sessionHandler.IncompleteHandler)
		r.Post("/{id}/heartbeat", sessionHandler.HeartbeatHandler)
		r.Get("/{id}/events", sessionHandler.EventsHandler)
		r.Get("/{id}/feedback", sessionHandler.FeedbackHandler)
	})

	router.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtSecret))

		r.Get("/", subscriptionHandler.GetHandler)
		r.With(middleware.ValidateRequest[*models.MinutesRequest]()).Post("/minutes", subscriptionHandler.AddMinutesHandler)
		r.With(middleware.ValidateRequest[*models.MinutesRequest]()).Post("/deduct", subscriptionHandler.DeductMinutesHandler)
	})
}
