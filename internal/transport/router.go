package transport

import (
	"net/http"

	"storefront-be/internal/auth"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/product"
	"storefront-be/internal/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps are the collaborators of the HTTP surface. Products, Limiter, Metrics
// and Gatherer are optional.
type Deps struct {
	Orders   order.Service
	Products product.Service
	Tokens   *auth.Tokens
	Limiter  *middleware.RateLimiter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	h := &OrderHandler{svc: d.Orders}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	if d.Metrics != nil {
		r.Use(observe(d.Metrics))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	r.Route("/orders", func(r chi.Router) {
		r.Use(middleware.Auth(d.Tokens))
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}
		r.Use(middleware.RequireAuth)

		r.Get("/", h.ListOrders)
		r.Post("/checkout", h.Checkout)
		r.Get("/stripe-verify-session", h.VerifyCheckoutSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Post("/pay", h.Pay)
			r.Post("/create-checkout-session", h.CreateCheckoutSession)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/payments", h.ListPayments)
				r.Post("/validate", h.Validate)
				r.Post("/ship", h.Ship)
				r.Post("/mark-delivered", h.MarkDelivered)
				r.Post("/cancel", h.Cancel)
				r.Post("/refund", h.Refund)
			})
		})
	})

	if d.Products != nil {
		ph := &ProductHandler{svc: d.Products}

		r.Route("/products", func(r chi.Router) {
			r.Use(middleware.Auth(d.Tokens))
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware)
			}

			r.Get("/", ph.List)
			r.Get("/{id}", ph.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Post("/", ph.Create)
				r.Post("/{id}/restock", ph.Restock)
			})
		})
	}

	return r
}

// observe records request count and latency per chi route pattern.
func observe(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timer := metrics.StartTimer()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(r.Method, route, status, timer.Duration())
		})
	}
}
