package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, 10, cfg.MaxHistory)
	assert.Equal(t, 5, cfg.MaxToolRounds)
	assert.True(t, cfg.EnableFunctionCalling)
	assert.False(t, cfg.AllowWriteActions)
	assert.Equal(t, "gate_sso", cfg.LinkDatabase)
	assert.Equal(t, "msiserver", cfg.LinkUser)
	assert.Equal(t, ":9565", cfg.ListenAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AI_ENABLED", "true")
	t.Setenv("AI_MODEL_PROVIDER", "sumopod")
	t.Setenv("AI_MAX_CONVERSATION_HISTORY", "4")
	t.Setenv("AI_ALLOW_WRITE_ACTIONS", "true")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")

	cfg := Load()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, ProviderSumopod, cfg.Provider)
	assert.Equal(t, 4, cfg.MaxHistory)
	assert.True(t, cfg.AllowWriteActions)
	assert.Equal(t, 0.2, cfg.OpenAITemperature)
}

func TestGetEnvDuration(t *testing.T) {
	t.Run("go duration syntax", func(t *testing.T) {
		t.Setenv("API_GATEWAY_TIMEOUT", "45s")
		assert.Equal(t, 45*time.Second, Load().GatewayTimeout)
	})

	t.Run("plain integers are milliseconds", func(t *testing.T) {
		t.Setenv("API_GATEWAY_TIMEOUT", "30000")
		assert.Equal(t, 30*time.Second, Load().GatewayTimeout)
	})

	t.Run("garbage keeps the default", func(t *testing.T) {
		t.Setenv("API_GATEWAY_TIMEOUT", "soon")
		assert.Equal(t, 30*time.Second, Load().GatewayTimeout)
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("unknown"))
}
