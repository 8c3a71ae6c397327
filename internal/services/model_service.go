package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"localchat-backend/internal/config"
	"localchat-backend/internal/engine"
	"localchat-backend/internal/generation"
)

// ErrModelNotLoaded is returned when a generation is requested before the engine is ready.
var ErrModelNotLoaded = errors.New("model is not loaded")

// DefaultReadyPollInterval is how often Load asks the engine whether it is ready.
const DefaultReadyPollInterval = 2 * time.Second

// ModelService owns engine readiness and turns a history into a generation stream.
type ModelService struct {
	engine   engine.Engine
	bridge   *generation.Bridge
	settings config.GenerationSettings
	modelID  string
	loaded   atomic.Bool
	logger   *slog.Logger

	PollInterval time.Duration
}

// NewModelService creates a ModelService. The time budget and the concurrency
// bound of its runs come from settings.
func NewModelService(eng engine.Engine, settings config.GenerationSettings, modelID string, logger *slog.Logger) *ModelService {
	if logger == nil {
		logger = slog.Default()
	}
	bridge := generation.NewBridge(generation.BridgeConfig{
		Budget:        generation.NewBudgetMonitor(settings.GenerationTimeout, logger),
		MaxConcurrent: int64(settings.MaxConcurrent),
		Logger:        logger,
	})
	return &ModelService{
		engine:       eng,
		bridge:       bridge,
		settings:     settings,
		modelID:      modelID,
		logger:       logger,
		PollInterval: DefaultReadyPollInterval,
	}
}

// IsLoaded reports whether the engine has finished loading.
func (s *ModelService) IsLoaded() bool {
	return s.loaded.Load()
}

// ModelID identifies the served model.
func (s *ModelService) ModelID() string {
	return s.modelID
}

// Load waits until the engine reports ready, then marks the model loaded.
// It gives up when ctx ends and leaves the service not loaded.
func (s *ModelService) Load(ctx context.Context) error {
	s.logger.Info("Waiting for model", "model_id", s.modelID)
	begin := time.Now()

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		err := s.engine.Ready(ctx)
		if err == nil {
			break
		}
		s.logger.Debug("Engine not ready yet", "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("model %s did not become ready: %w (last error: %v)", s.modelID, ctx.Err(), err)
		case <-ticker.C:
		}
	}

	if s.loaded.CompareAndSwap(false, true) {
		s.logger.Info("Model ready", "model_id", s.modelID, "waited_s", time.Since(begin).Seconds())
	}
	return nil
}

// GenerateStream shapes history and starts a generation run.
// The caller owns ctx; cancelling it abandons the run.
func (s *ModelService) GenerateStream(ctx context.Context, history []engine.ChatMessage) (<-chan generation.Event, error) {
	if !s.IsLoaded() {
		return nil, ErrModelNotLoaded
	}

	shaped := generation.ShapeHistory(history, s.settings.MaxHistoryMessages)
	params := engine.Params{
		MaxTokens:         s.settings.MaxNewTokens,
		Temperature:       s.settings.Temperature,
		TopP:              s.settings.TopP,
		RepetitionPenalty: s.settings.RepetitionPenalty,
	}

	return s.bridge.Stream(ctx, func(ctx context.Context) (engine.FragmentStream, error) {
		return s.engine.Generate(ctx, shaped, params)
	}), nil
}
