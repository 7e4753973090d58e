package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendOrigins  []string
	OpenAIKey        string
	AIProvider       string
	AIModel          string
	AIEmbeddingModel string
	AIBaseURL        string
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	RateLimitRate    string
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string

	Memory MemoryConfig
}

// MemoryConfig holds the consolidation and retrieval tunables. Values come
// from an optional YAML file (MEMORY_CONFIG_FILE); zero values fall back to
// the engine defaults.
type MemoryConfig struct {
	TriggerRounds   int `yaml:"trigger_rounds"`
	TriggerTokens   int `yaml:"trigger_tokens"`
	KeepRecent      int `yaml:"keep_recent"`
	LookbackDays    int `yaml:"lookback_days"`
	MaxSummaries    int `yaml:"max_summaries"`
	EmbeddingDims   int `yaml:"embedding_dims"`
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		FrontendOrigins:  getEnvList("FRONTEND_ORIGINS", []string{"http://localhost:3000"}),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AIProvider:       getEnv("AI_PROVIDER", "openai"),
		AIModel:          getEnv("AI_MODEL", ""),
		AIEmbeddingModel: getEnv("AI_EMBEDDING_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		RateLimitRate:    getEnv("RATE_LIMIT_RATE", "10-S"),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if path := os.Getenv("MEMORY_CONFIG_FILE"); path != "" {
		mc, err := loadMemoryConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.Memory = *mc
	}

	return cfg, nil
}

func loadMemoryConfig(path string) (*MemoryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory config %s: %w", path, err)
	}
	var mc MemoryConfig
	if err := yaml.Unmarshal(data, &mc); err != nil {
		return nil, fmt.Errorf("failed to parse memory config %s: %w", path, err)
	}
	if mc.TriggerRounds < 0 || mc.TriggerTokens < 0 || mc.LookbackDays < 0 ||
		mc.MaxSummaries < 0 || mc.KeepRecent < 0 || mc.EmbeddingDims < 0 || mc.CacheTTLMinutes < 0 {
		return nil, fmt.Errorf("memory config %s: values must be non-negative", path)
	}
	return &mc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
