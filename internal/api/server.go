// Package api exposes the read-only query surface over the store and the
// rejection ledger. It never writes; the pipeline owns all mutations.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/metrolab/tripline/internal/store"
)

// Options tunes the server.
type Options struct {
	// AnalyticsMaxRows caps how many trips the custom-analytics endpoints
	// materialize; it must not exceed the analytics package's own ceiling.
	AnalyticsMaxRows int
	// AnalyticsRate throttles the quadratic endpoints, requests per second.
	AnalyticsRate float64
}

// Server serves the REST endpoints.
type Server struct {
	store   store.Store
	opts    Options
	limiter *rate.Limiter
}

// New builds a Server over the given store.
func New(st store.Store, opts Options) *Server {
	if opts.AnalyticsMaxRows <= 0 {
		opts.AnalyticsMaxRows = 1000
	}
	if opts.AnalyticsRate <= 0 {
		opts.AnalyticsRate = 5
	}
	return &Server{
		store:   st,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.AnalyticsRate), int(opts.AnalyticsRate)+1),
	}
}

// Router assembles the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/zones", s.handleZones)
		r.Get("/trips", s.handleTrips)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/summary", s.handleSummary)
			r.Get("/quality", s.handleQuality)
			r.Get("/charts/boroughs", s.handleBoroughs)
			r.Get("/charts/efficiency", s.handleEfficiency)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", s.handleAnalyticsSummary)

			// The remaining endpoints run the quadratic in-memory library.
			r.Group(func(r chi.Router) {
				r.Use(s.throttle)
				r.Get("/sorted", s.handleSorted)
				r.Get("/grouped", s.handleGrouped)
				r.Get("/means", s.handleMeans)
				r.Get("/top", s.handleTopN)
			})
		})
	})

	return r
}

// throttle bounds the request rate on the quadratic endpoints.
func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func internalError(w http.ResponseWriter, what string, err error) {
	zap.L().Error("api: "+what, zap.Error(err))
	writeError(w, http.StatusInternalServerError, what+" failed")
}
