package llm

import (
	"testing"

	"github.com/msi-gate/assistant/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigurationErrors(t *testing.T) {
	base := config.Config{
		Enabled:      true,
		Provider:     config.ProviderOpenAI,
		OpenAIAPIKey: "sk-test",
		OpenAIModel:  "gpt-4o",
	}

	t.Run("assistant disabled", func(t *testing.T) {
		cfg := base
		cfg.Enabled = false
		_, err := New(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not enabled")
	})

	t.Run("missing openai key", func(t *testing.T) {
		cfg := base
		cfg.OpenAIAPIKey = ""
		_, err := New(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key")
	})

	t.Run("missing sumopod credentials", func(t *testing.T) {
		cfg := base
		cfg.Provider = config.ProviderSumopod
		_, err := New(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Sumopod API key")

		cfg.SumopodAPIKey = "sp-test"
		_, err = New(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base URL")
	})

	t.Run("ollama not implemented", func(t *testing.T) {
		cfg := base
		cfg.Provider = config.ProviderOllama
		_, err := New(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not implemented")
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := base
		cfg.Provider = "bedrock"
		_, err := New(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported")
	})

	t.Run("valid openai configuration", func(t *testing.T) {
		model, err := New(base)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", model.Name())
	})
}
