// Package api provides the HTTP server for Hearth.
// It exposes the household REST API consumed by the web UI.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hearthkeep/hearth/internal/infra/observability"
	"github.com/hearthkeep/hearth/internal/infra/sqlite"
)

// Server is the Hearth HTTP API server.
type Server struct {
	db             *sqlite.DB
	hub            *ActivityHub
	metricsEnabled bool
	now            func() time.Time
}

// NewServer creates a new API server.
func NewServer(db *sqlite.DB) *Server {
	return &Server{
		db:  db,
		hub: NewActivityHub(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetClock overrides the server clock. Used by tests.
func (s *Server) SetClock(now func() time.Time) { s.now = now }

// Hub returns the live activity hub (for broadcasting events).
func (s *Server) Hub() *ActivityHub { return s.hub }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/people", s.handleListPeople)
		r.Post("/people", s.handleCreatePerson)

		r.Get("/chores", s.handleListChores)
		r.Post("/chores", s.handleCreateChore)
		r.Get("/chores/{id}", s.handleGetChore)
		r.Put("/chores/{id}", s.handleUpdateChore)
		r.Delete("/chores/{id}", s.handleDeleteChore)
		r.Post("/chores/{id}/complete", s.handleComplete)

		r.Get("/calendar", s.handleCalendar)

		r.Get("/envelopes", s.handleListEnvelopes)
		r.Post("/envelopes", s.handleCreateEnvelope)
		r.Delete("/envelopes/{id}", s.handleDeleteEnvelope)
		r.Post("/envelopes/{id}/deposit", s.handleDeposit)
		r.Post("/envelopes/{id}/withdraw", s.handleWithdraw)
		r.Post("/envelopes/{id}/transfer", s.handleTransfer)
		r.Post("/envelopes/{id}/default", s.handleSetDefault)
		r.Get("/envelopes/{id}/goal", s.handleGoal)
		r.Get("/envelopes/{id}/ledger", s.handleLedger)

		r.Get("/rates", s.handleRate)

		r.Get("/activity/live", s.hub.HandleSSE)
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for the local web UI.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		observability.HTTPRequests.WithLabelValues(route, statusClass(ww.Status())).Inc()
		observability.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func statusClass(code int) string {
	if code == 0 {
		code = http.StatusOK
	}
	return fmt.Sprintf("%dxx", code/100)
}
