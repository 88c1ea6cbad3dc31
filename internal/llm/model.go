// Package llm wraps the langchaingo chat model and normalizes provider
// responses into one canonical tool-call representation.
package llm

import (
	"context"
	"fmt"

	"github.com/msi-gate/assistant/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Model wraps a langchaingo chat model with generation parameters from
// configuration.
type Model struct {
	llm         llms.Model
	modelName   string
	temperature float64
	maxTokens   int
}

// New creates the chat model from configuration. Configuration problems
// (assistant disabled, missing credentials, unknown provider) are returned
// before any network call is attempted.
func New(cfg config.Config) (*Model, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("AI assistant is not enabled")
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is not configured")
		}
		model, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.OpenAIModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return &Model{
			llm:         model,
			modelName:   cfg.OpenAIModel,
			temperature: cfg.OpenAITemperature,
			maxTokens:   cfg.OpenAIMaxTokens,
		}, nil

	case config.ProviderSumopod:
		if cfg.SumopodAPIKey == "" {
			return nil, fmt.Errorf("Sumopod API key is not configured")
		}
		if cfg.SumopodBaseURL == "" {
			return nil, fmt.Errorf("Sumopod base URL is not configured")
		}
		model, err := openai.New(
			openai.WithToken(cfg.SumopodAPIKey),
			openai.WithModel(cfg.SumopodModel),
			openai.WithBaseURL(cfg.SumopodBaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("create sumopod model: %w", err)
		}
		return &Model{
			llm:         model,
			modelName:   cfg.SumopodModel,
			temperature: cfg.SumopodTemperature,
			maxTokens:   cfg.SumopodMaxTokens,
		}, nil

	case config.ProviderOllama:
		return nil, fmt.Errorf("ollama provider is not implemented yet, use openai or sumopod")

	default:
		return nil, fmt.Errorf("unsupported AI model provider: %s", cfg.Provider)
	}
}

// NewWithModel wraps an existing langchaingo model. Used by tests and by the
// validation workflow, which shares the configured backend.
func NewWithModel(model llms.Model, name string, temperature float64, maxTokens int) *Model {
	return &Model{llm: model, modelName: name, temperature: temperature, maxTokens: maxTokens}
}

// Invoke performs one chat-completion call with the given tool catalog.
func (m *Model) Invoke(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool) (*llms.ContentResponse, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(m.temperature),
		llms.WithMaxTokens(m.maxTokens),
	}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}

	resp, err := m.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("model invocation failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}
	return resp, nil
}

// InvokeWithSystem performs a single system+user exchange with an explicit
// temperature, without any tool catalog. The validation workflow uses a low
// temperature for more deterministic comparisons.
func (m *Model) InvokeWithSystem(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	resp, err := m.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(m.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("model invocation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// Name returns the configured model name.
func (m *Model) Name() string {
	return m.modelName
}
