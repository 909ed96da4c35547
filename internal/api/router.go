package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fvnks/konecte-chatbridge/internal/api/middleware"
	"github.com/fvnks/konecte-chatbridge/internal/handlers"
)

// NewRouter creates and configures the HTTP router. redisClient may be
// nil, which disables rate limiting.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024))
	r.Use(middleware.RequireJSON)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	limiter := middleware.NewRateLimiter(redisClient, logger)
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Claim-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Web client surface
	r.Post("/messages", h.Send)
	r.Get("/conversations/{key}", h.Conversation)
	r.Get("/ws", h.WebSocket)

	// Channel agent surface
	r.Post("/replies", h.Reply)
	r.Post("/outbound/claim", h.Claim)
	r.Post("/outbound/{id}/claim", h.ClaimOne)
	r.Post("/messages/{id}/status", h.Transition)

	// Control plane: cross-process fan-out propagation
	r.Post("/internal/notify", h.Notify)

	return r
}
