package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/suze-ad/finetech/internal/http/handlers"
	httpmiddleware "github.com/suze-ad/finetech/internal/http/middleware"
	"github.com/suze-ad/finetech/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *handlers.ChatHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Requests per second per client IP on the chat endpoints. Zero
	// disables rate limiting.
	ChatRateLimit float64
	ChatRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Get("/health", cfg.ChatHandler.HealthCheck)
	r.Get("/widget.js", cfg.ChatHandler.HandleWidgetJS)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Widget API
	r.Route("/api/chat", func(chat chi.Router) {
		if cfg.ChatRateLimit > 0 {
			chat.Use(httpmiddleware.RateLimit(cfg.ChatRateLimit, cfg.ChatRateBurst))
		}
		chat.Post("/", cfg.ChatHandler.HandleMessage)
		chat.Post("/form", cfg.ChatHandler.HandleFormSubmit)
		chat.Post("/clear", cfg.ChatHandler.HandleClear)
		chat.Get("/session", cfg.ChatHandler.HandleSession)
		chat.Get("/history", cfg.ChatHandler.HandleHistory)
		chat.Get("/ws", cfg.ChatHandler.HandleWebSocket)
	})

	return r
}
