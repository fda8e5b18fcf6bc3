/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the scheduling screens

ROUTE GROUPS:
  /api/tenants/{tenant}/*   Schedule, overrides, reports, invalidation
  /api/invalidation-runs/*  Sweep bookkeeping across tenants
  /api/scenarios/*          Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/plantao/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultOrigins is used when no CORS origins are configured.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/tenants/{tenant}", func(r chi.Router) {
			r.Get("/sectors", h.ListSectors)
			r.Post("/sectors", h.SaveSector)
			r.Get("/workers", h.ListWorkers)
			r.Post("/workers", h.SaveWorker)
			r.Get("/shifts", h.ListShifts)
			r.Post("/shifts", h.SaveShift)

			r.Route("/assignments", func(r chi.Router) {
				r.Get("/", h.ListAssignments)
				r.Post("/", h.SaveAssignment)
				r.Put("/{id}/pin", h.PinValue)
				r.Delete("/{id}/pin", h.UnpinValue)
			})

			r.Route("/overrides", func(r chi.Router) {
				r.Get("/", h.ListOverrides)
				r.Put("/", h.SaveOverride)
				r.Put("/bulk", h.SaveOverrides)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/sectors", h.SectorReport)
				r.Get("/workers", h.WorkerReport)
				r.Get("/totals", h.TotalsReport)
				r.Get("/entries", h.EntriesReport)
			})

			r.Post("/invalidations", h.Invalidate)
		})

		r.Route("/invalidation-runs", func(r chi.Router) {
			r.Get("/", h.ListInvalidationRuns)
			r.Post("/retry", h.RetryInvalidations)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
