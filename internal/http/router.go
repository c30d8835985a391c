package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/corporate-rail-bookings/internal/idempotency"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl Limiter, limits RateLimits, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl, limits, logger))

		r.Post("/v1/searches", h.Search)
		r.Post("/v1/searches/{sessionID}/return-offers", h.ReturnOffers)

		r.Post("/v1/trips", h.CreateTrip)
		r.Get("/v1/trips", h.ListTrips)
		r.Get("/v1/trips/{id}", h.GetTrip)

		r.With(IdempotencyMiddleware(idemp, logger)).Post("/v1/bookings", h.CreateBooking)
		r.Get("/v1/bookings", h.ListBookings)
		r.Get("/v1/bookings/{id}", h.GetBooking)
		r.Post("/v1/bookings/{id}/confirm", h.ConfirmBooking)
		r.Post("/v1/bookings/{id}/fulfillment", h.RefreshFulfillment)
		r.Post("/v1/bookings/{id}/cancel", h.CancelBooking)

		r.Get("/v1/approvals", h.ListApprovals)
		r.Get("/v1/approvals/{id}", h.GetApproval)
		r.Post("/v1/approvals/{id}/resolve", h.ResolveApproval)

		r.Get("/v1/users/{id}/profile", h.GetProfile)
	})

	return r
}
