package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AaronKurian/ChatApp/internal/api/middleware"
	"github.com/AaronKurian/ChatApp/internal/handlers"
	"github.com/AaronKurian/ChatApp/internal/realtime"
)

// NewRouter creates and configures the HTTP router. redisClient may be nil,
// in which case rate limiting is disabled.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, hub *realtime.Hub, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024)) // 16KB max body

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (only when Redis is configured)
	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, logger)
		r.Use(limiter.Middleware)
	}

	// CORS - the web client may be served from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Web client assets
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir()))))

	// RPC boundary
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/login", h.Login)
	r.Get("/users", h.ListUsers)
	r.Get("/messages", h.GetMessages)
	r.Post("/messages", h.SendMessage)
	r.Get("/vapidPublicKey", h.VapidPublicKey)
	r.Post("/subscribe", h.Subscribe)

	// Live channel
	r.Get("/ws", hub.ServeWS)

	return r
}

// staticDir returns the path to static files directory.
func staticDir() string {
	// Check if running from app directory (production container)
	if _, err := os.Stat("/app/web/static"); err == nil {
		return "/app/web/static"
	}
	return "web/static"
}
