package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"localchat-backend/internal/api"
	"localchat-backend/internal/config"
	"localchat-backend/internal/engine"
	"localchat-backend/internal/handlers"
	"localchat-backend/internal/logging"
	"localchat-backend/internal/services"
	"localchat-backend/internal/store/memory"
)

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("Starting localchat backend", "model_id", cfg.ModelID(), "port", cfg.HTTPPort)

	// 2. Initialize the generation engine client
	eng, err := engine.NewOpenAIEngine(engine.OpenAIConfig{
		BaseURL: cfg.EngineBaseURL,
		APIKey:  cfg.EngineAPIKey,
		Model:   cfg.ModelFilename,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create engine client: %w", err)
	}

	// 3. Initialize Dependencies (Store, Services, Handlers)
	convStore := memory.NewMemoryStore(logger)

	modelService := services.NewModelService(eng, cfg.Generation(), cfg.ModelID(), logger)
	chatService := services.NewChatService(convStore, modelService, logger)
	conversationService := services.NewConversationService(convStore)

	chatHandler := handlers.NewChatHandlers(chatService, modelService, logger)
	conversationHandler := handlers.NewConversationHandler(conversationService, logger)
	healthHandler := handlers.NewHealthHandler(modelService)

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		ChatHandler:         chatHandler,
		ConversationHandler: conversationHandler,
		HealthHandler:       healthHandler,
		Config:              cfg,
		Logger:              logger,
	})
	if cfg.JWTSecret == "" {
		logger.Warn("API_JWT_SECRET not set, /api routes are unauthenticated")
	}

	// 5. Load the model in the background; chat answers 503 until it is ready.
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.EngineLoadTimeout)
	defer cancelLoad()
	go func() {
		if err := modelService.Load(loadCtx); err != nil {
			logger.Error("Failed to load model", "model_id", cfg.ModelID(), "error", err)
		}
	}()

	// 6. Configure and Start HTTP Server
	server := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		// WriteTimeout stays zero: chat responses are long-lived event streams.
		IdleTimeout: 120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", server.Addr, err)
		}
	case sig := <-stopChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	}
	cancelLoad()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}
