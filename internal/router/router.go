package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"botevents-api/internal/handler"
	"botevents-api/internal/metrics"
	"botevents-api/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	EventHandler   *handler.EventHandler
	AdminHandler   *handler.AdminHandler
	LogHandler     *handler.LogHandler
	AdminKey       string
	AllowedOrigins []string
	EnableMetrics  bool
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	if cfg.EnableMetrics {
		r.Use(metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", "X-Request-ID", "X-API-Key", "X-Login-Key",
			"X-Client-Version", "X-Session-ID",
		},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	// PUBLIC routes
	if cfg.Handler != nil {
		r.Get("/", cfg.Handler.Home)
		r.Get("/api/status", cfg.Handler.Status)
	}
	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Bot events authenticate per request inside the handler.
	if cfg.EventHandler != nil {
		r.Route("/events", eventRoutes(cfg.EventHandler))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.EventHandler != nil {
			r.Route("/events", eventRoutes(cfg.EventHandler))
		}

		// Admin endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminKey(cfg.AdminKey))

			if cfg.AdminHandler != nil {
				r.Get("/admin/stats", cfg.AdminHandler.GetStats)
				r.Delete("/admin/lockouts/{origin}", cfg.AdminHandler.ClearLockout)
			}
			if cfg.LogHandler != nil {
				r.Get("/admin/logs", cfg.LogHandler.GetEventLogs)
			}
		})
	})

	return r
}

func eventRoutes(h *handler.EventHandler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/query", h.Query)
		r.Post("/collect", h.Collect)
		r.Post("/dispatch", h.Dispatch)
		r.Post("/cancel", h.Cancel)
	}
}
