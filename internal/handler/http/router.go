package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mertkaradayi/bookcart/pkg/health"
	"github.com/mertkaradayi/bookcart/pkg/middleware"
)

// NewRouter assembles the service's HTTP surface.
func NewRouter(cartHandler *CartHandler, healthHandler *health.Handler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("cart-service"))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(RequireUserID)

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{bookID}", cartHandler.UpdateItem)
		r.Delete("/items/{bookID}", cartHandler.RemoveItem)
	})

	return r
}
