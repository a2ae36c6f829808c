/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request (chi)
  2. CorrelationID: X-Correlation-ID echoed or generated (uuid)
  3. Logger:        Request logging
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the front-desk dashboard

ROUTE GROUPS:
  /api/bookings/*   Booking lifecycle
  /api/rooms/*      Rooms, availability, utility charges
  /api/journals/*   Manual postings and journal lookup
  /api/reports/*    Trial balance, income statement
  /api/admin/*      Backups

SECURITY NOTE:
  No authentication middleware. Deploy behind the hotel network boundary.

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

// NewRouter creates a router with all routes configured. allowedOrigins
// feeds the CORS policy.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(CorrelationID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", CorrelationIDHeader},
		ExposedHeaders:   []string{CorrelationIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		// Booking routes
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Get("/{id}", h.GetBooking)
			r.Post("/{id}/checkin", h.CheckIn)
			r.Post("/{id}/checkout", h.Checkout)
			r.Post("/{id}/cancel", h.Cancel)
			r.Post("/{id}/no-show", h.MarkNoShow)
		})

		// Room routes
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", h.ListRooms)
			r.Get("/{id}/bookings", h.ListRoomBookings)
			r.Get("/{id}/conflicts", h.CheckConflicts)
			r.Post("/{id}/utilities", h.RecordUtilityCharge)
		})

		// Journal routes
		r.Route("/journals", func(r chi.Router) {
			r.Post("/", h.PostJournal)
			r.Get("/{id}", h.GetJournal)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", h.TrialBalance)
			r.Get("/income-statement", h.IncomeStatement)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/backup", h.Backup)
			r.Get("/backups", h.ListBackups)
		})
	})

	return r
}
