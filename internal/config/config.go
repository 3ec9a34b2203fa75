package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	SessionIdleTTL   time.Duration
	MetricsNamespace string
	LogLevel         string

	AllowedOrigins []string

	LLMProvider    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	Model          string
	LLMHTTPURL     string
	Temperature    float64
	LLMTimeout     time.Duration

	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingTimeout  time.Duration

	ChromaDir        string
	MemoryCollection string
	MemoryCompress   bool
	MemoryExportPath string

	// HistoryURL is optional; empty disables short-term memory.
	HistoryURL string
	HistoryTTL time.Duration

	TopK           int
	HistoryWindow  int
	SystemPrompt   string // empty means the chat package default
	InjectMemories bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "recall"),
		LogLevel:          envOrDefault("APP_LOG_LEVEL", "info"),
		AllowedOrigins:    splitList(envOrDefault("ALLOWED_ORIGINS", "http://localhost:8501")),
		LLMProvider:       envOrDefault("LLM_PROVIDER", "auto"),
		OpenAIAPIKey:      stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:     stringsTrimSpace("OPENAI_BASE_URL"),
		Model:             envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		LLMHTTPURL:        stringsTrimSpace("LLM_HTTP_URL"),
		EmbeddingProvider: envOrDefault("EMBEDDING_PROVIDER", "auto"),
		EmbeddingModel:    envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		ChromaDir:         envOrDefault("CHROMA_DIR", "./.chroma"),
		MemoryCollection:  envOrDefault("MEMORY_COLLECTION", "long_term_memory"),
		MemoryExportPath:  stringsTrimSpace("MEMORY_EXPORT_PATH"),
		HistoryURL:        stringsTrimSpace("REDIS_URL"),
		SystemPrompt:      stringsTrimSpace("CHAT_SYSTEM_PROMPT"),
		Temperature:       0.2,
		TopK:              4,
		HistoryWindow:     12,
		ShutdownTimeout:   15 * time.Second,
		SessionIdleTTL:    30 * time.Minute,
		LLMTimeout:        60 * time.Second,
		EmbeddingTimeout:  15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionIdleTTL, err = durationFromEnv("SESSION_IDLE_TIMEOUT", cfg.SessionIdleTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTimeout, err = durationFromEnv("LLM_TIMEOUT", cfg.LLMTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingTimeout, err = durationFromEnv("EMBEDDING_TIMEOUT", cfg.EmbeddingTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryTTL, err = durationFromEnv("HISTORY_TTL", cfg.HistoryTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature, err = floatFromEnv("LLM_TEMPERATURE", cfg.Temperature)
	if err != nil {
		return Config{}, err
	}
	cfg.TopK, err = intFromEnv("CHAT_TOP_K", cfg.TopK)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow, err = intFromEnv("CHAT_HISTORY_WINDOW", cfg.HistoryWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryCompress, err = boolFromEnv("MEMORY_COMPRESS", cfg.MemoryCompress)
	if err != nil {
		return Config{}, err
	}
	cfg.InjectMemories, err = boolFromEnv("CHAT_INJECT_MEMORIES", cfg.InjectMemories)
	if err != nil {
		return Config{}, err
	}

	if cfg.TopK <= 0 {
		return Config{}, fmt.Errorf("CHAT_TOP_K must be positive")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("CHAT_HISTORY_WINDOW must be positive")
	}
	if cfg.HistoryTTL < 0 {
		return Config{}, fmt.Errorf("HISTORY_TTL must be >= 0")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return Config{}, fmt.Errorf("LLM_TEMPERATURE must be within [0, 2]")
	}
	if cfg.SessionIdleTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if cfg.LLMTimeout <= 0 || cfg.EmbeddingTimeout <= 0 {
		return Config{}, fmt.Errorf("LLM_TIMEOUT and EMBEDDING_TIMEOUT must be positive")
	}
	if strings.TrimSpace(cfg.ChromaDir) == "" {
		return Config{}, fmt.Errorf("CHROMA_DIR must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
