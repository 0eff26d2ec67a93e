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
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/violations        Manual violation recording
  /api/employees/*       Per-employee ratings and violation history
  /api/companies/*       Rules, batch recalculation, detection, stats
  /api/rules/*           Rule lookup and updates
  /api/admin/*           Cross-company operations
  /healthz               Liveness probe

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

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Violation routes
		r.Route("/violations", func(r chi.Router) {
			r.Post("/", h.RecordViolation)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/{id}/violations", h.ListEmployeeViolations)
			r.Get("/{id}/rating", h.GetRating)
			r.Post("/{id}/rating/recalculate", h.RecalculateEmployee)
			r.Post("/{id}/rating/adjust", h.AdjustRating)
		})

		// Company routes
		r.Route("/companies", func(r chi.Router) {
			r.Get("/{id}/rules", h.ListRules)
			r.Post("/{id}/rules", h.CreateRule)
			r.Post("/{id}/recalculate", h.RecalculateCompany)
			r.Post("/{id}/detect", h.TriggerDetection)
			r.Get("/{id}/stats", h.GetCompanyStats)
		})

		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/{id}", h.GetRule)
			r.Put("/{id}", h.UpdateRule)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/recalculate", h.RecalculateAll)
		})
	})

	return r
}
