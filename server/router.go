package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/zentity/zk-attest/logger"
	"github.com/zentity/zk-attest/ratelimit"
	"github.com/zentity/zk-attest/server/api"
)

// NewRouter wires the API handlers behind the middleware stack. A nil limiter
// disables rate limiting.
func NewRouter(server *api.Server, cfg *ServeConfig, limiter ratelimit.Limiter, log logger.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggerMiddleware(log))
	r.Use(middleware.Recoverer)
	if cfg.WriteTimeout > 0 {
		r.Use(middleware.Timeout(cfg.WriteTimeout))
	}
	if cfg.MaxRequestSize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestSize))
	}

	// CORS middleware
	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST"},
			AllowedHeaders:   []string{"Accept", "Content-Type", api.UserIDHeader, api.InternalTokenHeader},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Use(api.RequireInternalToken(cfg.InternalToken, log))

	// Compression
	r.Use(middleware.Compress(5))

	limit := func(route string) func(http.Handler) http.Handler {
		return api.RateLimit(limiter, route, cfg.RateLimitRequests, cfg.RateLimitWindow, log)
	}

	// Health and readiness
	r.Get("/health", server.HandleHealth)

	// Circuit info
	r.Get("/circuits", server.HandleListCircuits)
	r.Get("/circuits/{circuit}", server.HandleGetCircuit)

	// Challenges
	r.With(limit("challenges")).Post("/challenges", server.HandleCreateChallenge)
	r.Get("/challenges/active", server.HandleActiveChallenges)

	// Proof verification
	r.With(limit("proofs")).Post("/proofs/verify", server.HandleVerifyProof)

	// Attestations
	if cfg.IssuesAttestations() {
		r.Post("/attestations", server.HandleIssueAttestation)
	} else {
		log.Warn("No internal token configured; attestation issuance is disabled")
	}
	r.Post("/attestations/verify", server.HandleVerifyAttestation)

	// Pprof (debug only)
	if cfg.EnablePprof {
		r.Mount("/debug", middleware.Profiler())
	}

	return r
}
