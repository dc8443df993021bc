package rest

import (
	"net/http"
	"time"

	"storefront/internal/identity"
	"storefront/internal/logger"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// StrictPaths are the routes rate limited with the strict tier.
var StrictPaths = []string{"/checkout", "/cart/merge"}

func NewRouter(h *Handler, resolver *identity.Resolver, limiter *middleware.Limiter, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/debug/metrics", h.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(resolver.Middleware)
		r.Use(limiter.Middleware)
		r.Use(chimw.Timeout(requestTimeout))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/lines", h.AddLine)
			r.Patch("/lines/{lineID}", h.UpdateLine)
			r.Delete("/lines/{lineID}", h.RemoveLine)
			r.Post("/merge", h.MergeCart)
		})

		r.Get("/checkout/preview", h.PreviewCheckout)
		r.Post("/checkout", h.PlaceOrder)
		r.Get("/receipts/{code}", h.GetReceipt)
		r.Get("/orders/{orderID}", h.GetOrder)

		r.With(requireAdmin).Post("/admin/orders/{orderID}/status", h.TransitionOrder)
	})

	return r
}
