package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"localchat-backend/internal/config"
	"localchat-backend/internal/handlers"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	ChatHandler         *handlers.ChatHandlers
	ConversationHandler *handlers.ConversationHandler
	HealthHandler       *handlers.HealthHandler
	Config              *config.Config
	Logger              *slog.Logger
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	// No request timeout: chat streams stay open for the whole generation.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// --- Public Routes ---
		if deps.HealthHandler != nil {
			r.Get("/health", deps.HealthHandler.HandleHealth)
		} else {
			logger.Warn("HealthHandler dependency is nil, skipping /api/health route")
		}

		// --- Guarded Routes (JWT Required when a secret is configured) ---
		r.Group(func(r chi.Router) {
			if deps.Config.JWTSecret != "" {
				r.Use(JwtAuthMiddleware(deps.Config.JWTSecret, logger))
			}

			if deps.ChatHandler != nil {
				r.Post("/chat", deps.ChatHandler.HandleChat)
			} else {
				logger.Warn("ChatHandler dependency is nil, skipping /api/chat route")
			}

			if deps.ConversationHandler != nil {
				r.Route("/conversations", func(r chi.Router) {
					r.Get("/", deps.ConversationHandler.HandleListConversations)
					r.Get("/{conversationID}", deps.ConversationHandler.HandleGetConversation)
					r.Delete("/{conversationID}", deps.ConversationHandler.HandleDeleteConversation)
				})
			} else {
				logger.Warn("ConversationHandler dependency is nil, skipping /api/conversations routes")
			}
		})
	})

	return r
}
