package assistant

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/msi-gate/assistant/internal/store"
)

// PromptKey is the key the orchestrator resolves its system prompt under.
const PromptKey = "assistant_system"

// DefaultSystemPrompt is used when no prompt row is available. The assistant
// must keep working when the prompt table is missing or unreachable.
const DefaultSystemPrompt = `You are an AI assistant for an enterprise management system. ` +
	`You help users look up HR candidates and employees, quotations, and catalog products ` +
	`through the tools provided. Use tools to fetch real data instead of guessing. ` +
	`Answer concisely in the user's language. If a request needs data you cannot access, ` +
	`say so instead of inventing an answer.`

// PromptResolver resolves the active system prompt with a short-lived cache
// in front of the prompt store. Store failures fall back to the built-in
// prompt, which is cached like a real one so a broken database is not hit on
// every message.
type PromptResolver struct {
	prompts store.PromptStore
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cachedPrompt
}

type cachedPrompt struct {
	content   string
	expiresAt time.Time
}

// NewPromptResolver creates a resolver. A nil prompt store always yields the
// built-in prompt.
func NewPromptResolver(prompts store.PromptStore, ttl time.Duration, logger *slog.Logger) *PromptResolver {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PromptResolver{
		prompts: prompts,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		cache:   make(map[string]cachedPrompt),
	}
}

// Resolve returns the active prompt for a key. It never fails; resolution
// problems degrade to the built-in prompt.
func (r *PromptResolver) Resolve(ctx context.Context, key string) string {
	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && r.now().Before(entry.expiresAt) {
		r.mu.Unlock()
		return entry.content
	}
	r.mu.Unlock()

	content := DefaultSystemPrompt
	if r.prompts != nil {
		resolved, err := r.prompts.ActiveByKey(ctx, key)
		if err != nil {
			r.logger.Warn("prompt resolution failed, using built-in prompt", "key", key, "error", err)
		} else {
			content = resolved
		}
	}

	r.mu.Lock()
	r.cache[key] = cachedPrompt{content: content, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return content
}

// Invalidate drops the cached entry for a key so the next resolve hits the
// store again.
func (r *PromptResolver) Invalidate(key string) {
	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()
}
