/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/pricing/configurations/*   Premium pricing engine
  /api/claims/validate            Claims validation engine
  /healthz, /readyz               Liveness/readiness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
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

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/pricing/configurations", func(r chi.Router) {
			r.Post("/", h.CreateConfiguration)
			r.Get("/", h.ListConfigurations)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetConfiguration)

				r.Route("/benefits", func(r chi.Router) {
					r.Get("/", h.ListBenefits)
					r.Post("/", h.ToggleBenefit)
					r.Post("/override", h.OverrideBenefit)
				})

				r.Route("/factors", func(r chi.Router) {
					r.Get("/", h.ListFactors)
					r.Post("/", h.UpdateFactor)
				})

				r.Route("/members", func(r chi.Router) {
					r.Get("/", h.ListMembers)
					r.Post("/", h.AddMember)
					r.Post("/import", h.ImportMembers)
				})

				r.Post("/calculate", h.Calculate)
				r.Get("/calculations/history", h.CalculationHistory)

				r.Post("/submit", h.Submit)
				r.Post("/approve", h.Approve)
				r.Get("/approvals", h.ListApprovals)

				r.Get("/quote", h.GetQuote)
				r.Get("/quote.pdf", h.GetQuote)
			})
		})

		r.Route("/claims", func(r chi.Router) {
			r.Post("/validate", h.ValidateClaim)
		})
	})

	return r
}
