package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/counsel-room/internal/conversation"
	httpmiddleware "github.com/wolfman30/counsel-room/internal/http/middleware"
	"github.com/wolfman30/counsel-room/internal/webchat"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	WebChat             *webchat.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// RateLimitRPS <= 0 disables per-IP rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.WebChat != nil {
		r.Get("/ws", cfg.WebChat.HandleWebSocket)
	}

	if h := cfg.ConversationHandler; h != nil {
		r.Group(func(api chi.Router) {
			if cfg.RateLimitRPS > 0 {
				api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
			}
			api.Route("/sessions", func(s chi.Router) {
				s.Post("/", h.CreateSession)
				s.Route("/{sessionID}", func(one chi.Router) {
					one.Get("/", h.GetSession)
					one.Delete("/", h.DeleteSession)
					one.Post("/messages", h.Message)
					one.Post("/reset", h.ResetSession)
					one.Post("/reflection", h.Reflection)
				})
			})
			api.Post("/risk/classify", h.ClassifyRisk)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
