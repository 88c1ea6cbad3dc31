package assistant

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingPrompts struct {
	content string
	err     error
	hits    int
}

func (c *countingPrompts) ActiveByKey(context.Context, string) (string, error) {
	c.hits++
	if c.err != nil {
		return "", c.err
	}
	return c.content, nil
}

func TestPromptResolver(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	t.Run("resolved prompt is cached within the TTL", func(t *testing.T) {
		prompts := &countingPrompts{content: "stored prompt"}
		r := NewPromptResolver(prompts, time.Minute, logger)

		assert.Equal(t, "stored prompt", r.Resolve(ctx, PromptKey))
		assert.Equal(t, "stored prompt", r.Resolve(ctx, PromptKey))
		assert.Equal(t, 1, prompts.hits)
	})

	t.Run("expired entry hits the store again", func(t *testing.T) {
		prompts := &countingPrompts{content: "stored prompt"}
		r := NewPromptResolver(prompts, time.Minute, logger)

		r.Resolve(ctx, PromptKey)
		r.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		r.Resolve(ctx, PromptKey)

		assert.Equal(t, 2, prompts.hits)
	})

	t.Run("store failure falls back and caches the fallback", func(t *testing.T) {
		prompts := &countingPrompts{err: errors.New("relation does not exist")}
		r := NewPromptResolver(prompts, time.Minute, logger)

		assert.Equal(t, DefaultSystemPrompt, r.Resolve(ctx, PromptKey))
		assert.Equal(t, DefaultSystemPrompt, r.Resolve(ctx, PromptKey))
		assert.Equal(t, 1, prompts.hits)
	})

	t.Run("invalidate forces a fresh resolve", func(t *testing.T) {
		prompts := &countingPrompts{content: "v1"}
		r := NewPromptResolver(prompts, time.Minute, logger)

		r.Resolve(ctx, PromptKey)
		prompts.content = "v2"
		r.Invalidate(PromptKey)

		assert.Equal(t, "v2", r.Resolve(ctx, PromptKey))
	})

	t.Run("nil store always yields the built-in prompt", func(t *testing.T) {
		r := NewPromptResolver(nil, time.Minute, logger)
		assert.Equal(t, DefaultSystemPrompt, r.Resolve(ctx, PromptKey))
	})
}
