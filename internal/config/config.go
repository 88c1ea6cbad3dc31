// Package config loads gateway configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider identifiers for the chat model backend.
const (
	ProviderOpenAI  = "openai"
	ProviderSumopod = "sumopod"
	ProviderOllama  = "ollama"
)

// Config holds all configuration values.
type Config struct {
	// Assistant core
	Enabled               bool
	Provider              string
	MaxHistory            int // conversation pairs kept per session
	MaxToolRounds         int // tool-calling iterations before terminal error
	EnableFunctionCalling bool
	AllowWriteActions     bool
	PromptCacheTTL        time.Duration

	// OpenAI
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float64
	OpenAIMaxTokens   int

	// Sumopod (OpenAI-compatible hosted gateway)
	SumopodAPIKey      string
	SumopodBaseURL     string
	SumopodModel       string
	SumopodTemperature float64
	SumopodMaxTokens   int

	// Downstream API gateway
	GatewayBaseURL   string
	GatewayTimeout   time.Duration
	AggregateMaxPage int

	// Core PostgreSQL (conversations + prompts)
	DatabaseURL string

	// gate_sso cross-database link
	LinkHost     string
	LinkPort     string
	LinkDatabase string
	LinkUser     string
	LinkPassword string

	// Redis conversation cache (optional, empty addr disables)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// HTTP server
	ListenAddr string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
// Defaults mirror the staging deployment.
func Load() Config {
	return Config{
		Enabled:               getEnv("AI_ENABLED", "false") == "true",
		Provider:              getEnv("AI_MODEL_PROVIDER", ProviderOpenAI),
		MaxHistory:            getEnvInt("AI_MAX_CONVERSATION_HISTORY", 10),
		MaxToolRounds:         getEnvInt("AI_MAX_TOOL_ROUNDS", 5),
		EnableFunctionCalling: getEnv("AI_ENABLE_FUNCTION_CALLING", "true") != "false",
		AllowWriteActions:     getEnv("AI_ALLOW_WRITE_ACTIONS", "false") == "true",
		PromptCacheTTL:        getEnvDuration("AI_PROMPT_CACHE_TTL", 5*time.Minute),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAITemperature: getEnvFloat("OPENAI_TEMPERATURE", 0.7),
		OpenAIMaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 2000),

		SumopodAPIKey:      getEnv("SUMOPOD_API_KEY", ""),
		SumopodBaseURL:     getEnv("SUMOPOD_BASE_URL", ""),
		SumopodModel:       getEnv("SUMOPOD_MODEL", getEnv("OPENAI_MODEL", "gpt-4o")),
		SumopodTemperature: getEnvFloat("SUMOPOD_TEMPERATURE", getEnvFloat("OPENAI_TEMPERATURE", 0.7)),
		SumopodMaxTokens:   getEnvInt("SUMOPOD_MAX_TOKENS", getEnvInt("OPENAI_MAX_TOKENS", 2000)),

		GatewayBaseURL:   getEnv("API_GATEWAY_BASE_URL", ""),
		GatewayTimeout:   getEnvDuration("API_GATEWAY_TIMEOUT", 30*time.Second),
		AggregateMaxPage: getEnvInt("AI_AGGREGATE_MAX_PAGE", 1000),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		LinkHost:     getEnv("DB_GATE_SSO_HOST", "localhost"),
		LinkPort:     getEnv("DB_GATE_SSO_PORT", "5432"),
		LinkDatabase: getEnv("DB_GATE_SSO_NAME", "gate_sso"),
		LinkUser:     getEnv("DB_GATE_SSO_USER", "msiserver"),
		LinkPassword: getEnv("DB_GATE_SSO_PASSWORD", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ListenAddr: getEnv("ASSISTANT_LISTEN_ADDR", ":9565"),

		LogFile:  getEnv("ASSISTANT_LOG_FILE", "/tmp/assistant.log"),
		LogLevel: parseLogLevel(getEnv("ASSISTANT_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Plain integers are treated as milliseconds, matching the old deployment env.
		if n, err := strconv.Atoi(val); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
