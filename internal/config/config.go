package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort    string
	CORSOrigins []string
	LogLevel    string

	// Model identity, reported by the health endpoint.
	ModelRepo     string
	ModelFilename string

	// OpenAI-compatible engine server (llama.cpp server, Ollama, ...).
	EngineBaseURL     string
	EngineAPIKey      string
	EngineLoadTimeout time.Duration

	MaxNewTokens             int
	GenerationTimeout        time.Duration
	Temperature              float32
	TopP                     float32
	RepetitionPenalty        float32
	MaxHistoryMessages       int
	MaxConcurrentGenerations int

	// JWTSecret enables the bearer-token guard on /api when non-empty.
	JWTSecret       string
	TokenExpiration time.Duration
}

// GenerationSettings is the read-only snapshot of knobs consumed by one generation run.
type GenerationSettings struct {
	MaxNewTokens       int
	GenerationTimeout  time.Duration
	MaxHistoryMessages int
	Temperature        float32
	TopP               float32
	RepetitionPenalty  float32
	// MaxConcurrent bounds engine runs in flight. Zero means unbounded.
	MaxConcurrent int
}

// Generation returns the generation settings portion of the config.
func (c *Config) Generation() GenerationSettings {
	return GenerationSettings{
		MaxNewTokens:       c.MaxNewTokens,
		GenerationTimeout:  c.GenerationTimeout,
		MaxHistoryMessages: c.MaxHistoryMessages,
		Temperature:        c.Temperature,
		TopP:               c.TopP,
		RepetitionPenalty:  c.RepetitionPenalty,
		MaxConcurrent:      c.MaxConcurrentGenerations,
	}
}

// ModelID identifies the served model as repo/filename.
func (c *Config) ModelID() string {
	return c.ModelRepo + "/" + c.ModelFilename
}

// LoadConfig loads configuration from environment variables.
// It reads envFile first (".env" when empty); a missing file is not an error.
func LoadConfig(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		slog.Debug("No env file found, using environment variables only", "file", envFile)
	}

	cfg := &Config{
		HTTPPort:      getEnv("API_PORT", "8000"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		ModelRepo:     getEnv("MODEL_REPO", "Qwen/Qwen2.5-0.5B-Instruct-GGUF"),
		ModelFilename: getEnv("MODEL_FILENAME", "qwen2.5-0.5b-instruct-q5_k_m.gguf"),
		EngineBaseURL: getEnv("ENGINE_BASE_URL", "http://localhost:8080/v1"),
		EngineAPIKey:  getEnv("ENGINE_API_KEY", ""),
		JWTSecret:     getEnv("API_JWT_SECRET", ""),
	}

	var err error
	if cfg.EngineLoadTimeout, err = getEnvSeconds("ENGINE_LOAD_TIMEOUT_S", 600); err != nil {
		return nil, err
	}
	if cfg.MaxNewTokens, err = getEnvInt("MAX_NEW_TOKENS", 512); err != nil {
		return nil, err
	}
	if cfg.GenerationTimeout, err = getEnvSeconds("GENERATION_TIMEOUT_S", 30); err != nil {
		return nil, err
	}
	if cfg.Temperature, err = getEnvFloat32("TEMPERATURE", 0.7); err != nil {
		return nil, err
	}
	if cfg.TopP, err = getEnvFloat32("TOP_P", 0.9); err != nil {
		return nil, err
	}
	if cfg.RepetitionPenalty, err = getEnvFloat32("REPETITION_PENALTY", 1.1); err != nil {
		return nil, err
	}
	if cfg.MaxHistoryMessages, err = getEnvInt("MAX_HISTORY_MESSAGES", 10); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentGenerations, err = getEnvInt("MAX_CONCURRENT_GENERATIONS", 4); err != nil {
		return nil, err
	}
	tokenExpHours, err := getEnvInt("JWT_EXPIRATION_HOURS", 24)
	if err != nil {
		return nil, err
	}
	cfg.TokenExpiration = time.Hour * time.Duration(tokenExpHours)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	slog.Debug("Loaded config",
		"port", cfg.HTTPPort,
		"engine_base_url", cfg.EngineBaseURL,
		"model_id", cfg.ModelID(),
		"max_history_messages", cfg.MaxHistoryMessages,
		"generation_timeout_s", cfg.GenerationTimeout.Seconds(),
		"jwt_guard", cfg.JWTSecret != "",
	)
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.MaxNewTokens <= 0:
		return fmt.Errorf("MAX_NEW_TOKENS must be positive, got %d", c.MaxNewTokens)
	case c.MaxHistoryMessages <= 0:
		return fmt.Errorf("MAX_HISTORY_MESSAGES must be positive, got %d", c.MaxHistoryMessages)
	case c.MaxConcurrentGenerations <= 0:
		return fmt.Errorf("MAX_CONCURRENT_GENERATIONS must be positive, got %d", c.MaxConcurrentGenerations)
	case c.GenerationTimeout <= 0:
		return fmt.Errorf("GENERATION_TIMEOUT_S must be positive, got %s", c.GenerationTimeout)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvFloat32(key string, fallback float32) (float32, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return float32(v), nil
}

// getEnvSeconds reads a (possibly fractional) number of seconds.
func getEnvSeconds(key string, fallback float64) (time.Duration, error) {
	secs := fallback
	if raw, exists := os.LookupEnv(key); exists && strings.TrimSpace(raw) != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
		secs = v
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
