/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for office tooling

ROUTE GROUPS:
  /api/customers, /api/markings, /api/shipments,
  /api/expenses/*, /api/sales     Read surface over the reconciled store
  /api/reconcile/unresolved       Null-link tallies
  /api/import                     Deterministic batch ingestion

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/auto-office/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/customers", h.ListCustomers)
		r.Get("/markings", h.ListMarkings)
		r.Get("/shipments", h.ListShipments)

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/forever", h.ListExpensesForever)
			r.Get("/iphandlers", h.ListExpensesIphandlers)
		})

		r.Get("/sales", h.ListSales)
		r.Get("/reconcile/unresolved", h.Unresolved)
		r.Post("/import", h.Import)
	})

	return r
}
