// Package assistant orchestrates chat turns: it assembles the model context
// from the stored transcript, runs the tool-calling loop, and persists the
// finished exchange.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/msi-gate/assistant/internal/llm"
	"github.com/msi-gate/assistant/internal/metrics"
	"github.com/msi-gate/assistant/internal/store"
	"github.com/msi-gate/assistant/internal/tools"
)

// FallbackReply is returned when the model produces no usable text.
const FallbackReply = "I'm sorry, I couldn't generate a response. Please try again."

// ChatRequest is one user message addressed to a session.
type ChatRequest struct {
	CallerID  string
	SessionID string
	Message   string
	// AllowedModules restricts the visible tool catalog. Nil means
	// unrestricted.
	AllowedModules []string
	// Token is the caller's bearer token, forwarded to gateway tools.
	Token string
}

// ChatResult is the finished exchange.
type ChatResult struct {
	SessionID string   `json:"session_id"`
	Reply     string   `json:"reply"`
	ToolsUsed []string `json:"tools_used,omitempty"`
}

// Orchestrator drives the conversation state machine. Turns within one
// session are serialized; different sessions run concurrently.
type Orchestrator struct {
	model         *llm.Model
	registry      *tools.Registry
	prompts       *PromptResolver
	conversations store.ConversationStore
	collector     *metrics.Collector
	logger        *slog.Logger
	maxHistory    int
	maxToolRounds int

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is a reference-counted entry in the keyed lock map. The count
// covers the holder and all waiters, so the entry can be deleted once the
// last one releases; synthesized one-shot session ids must not accumulate.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Options configures an orchestrator.
type Options struct {
	Model         *llm.Model
	Registry      *tools.Registry
	Prompts       *PromptResolver
	Conversations store.ConversationStore
	Collector     *metrics.Collector
	Logger        *slog.Logger
	MaxHistory    int
	MaxToolRounds int
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 10
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 5
	}
	if opts.Collector == nil {
		opts.Collector = metrics.NewCollector()
	}
	return &Orchestrator{
		model:         opts.Model,
		registry:      opts.Registry,
		prompts:       opts.Prompts,
		conversations: opts.Conversations,
		collector:     opts.Collector,
		logger:        opts.Logger,
		maxHistory:    opts.MaxHistory,
		maxToolRounds: opts.MaxToolRounds,
		locks:         make(map[string]*sessionLock),
	}
}

// Chat processes one user message end to end.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	lock := o.acquireSession(req.SessionID)
	defer o.releaseSession(req.SessionID, lock)

	history := o.loadHistory(ctx, req.SessionID)
	messages := o.buildContext(ctx, history, req)
	defs := o.registry.Definitions(req.AllowedModules)

	var (
		reply     string
		toolsUsed []string
	)
	for round := 0; ; round++ {
		if round > o.maxToolRounds {
			return nil, fmt.Errorf("tool loop exceeded %d rounds for session %s", o.maxToolRounds, req.SessionID)
		}

		started := time.Now()
		resp, err := o.model.Invoke(ctx, messages, defs)
		if err != nil {
			o.collector.RecordError(metrics.OpModelInvoke, time.Since(started))
			return nil, err
		}
		o.recordUsage(resp, time.Since(started))

		choice := resp.Choices[0]
		calls := llm.NormalizeToolCalls(choice)
		if len(calls) == 0 {
			reply = llm.ExtractText(choice)
			break
		}

		messages = append(messages, assistantToolTurn(calls))
		for _, call := range calls {
			messages = append(messages, o.dispatch(ctx, call, req.Token))
			toolsUsed = append(toolsUsed, call.Name)
		}
	}

	if strings.TrimSpace(reply) == "" {
		reply = FallbackReply
	}

	o.persist(ctx, req, history, reply)

	return &ChatResult{
		SessionID: req.SessionID,
		Reply:     reply,
		ToolsUsed: toolsUsed,
	}, nil
}

// History returns the stored transcript for a session.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]store.Turn, error) {
	return o.conversations.Load(ctx, sessionID)
}

// Clear deletes the stored transcript for a session.
func (o *Orchestrator) Clear(ctx context.Context, sessionID string) error {
	return o.conversations.Delete(ctx, sessionID)
}

// loadHistory fetches the transcript, treating load failures as an empty
// history. A broken store must not block the chat.
func (o *Orchestrator) loadHistory(ctx context.Context, sessionID string) []store.Turn {
	started := time.Now()
	history, err := o.conversations.Load(ctx, sessionID)
	if err != nil {
		o.collector.RecordError(metrics.OpConversationLoad, time.Since(started))
		o.logger.Warn("conversation load failed, starting fresh", "session_id", sessionID, "error", err)
		return nil
	}
	o.collector.RecordTiming(metrics.OpConversationLoad, time.Since(started))
	return history
}

// buildContext assembles the model input: system prompt, stored history, then
// the new user message.
func (o *Orchestrator) buildContext(ctx context.Context, history []store.Turn, req ChatRequest) []llms.MessageContent {
	system := o.prompts.Resolve(ctx, PromptKey)
	if req.AllowedModules != nil {
		system += restrictionClause(req.AllowedModules)
	}

	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == store.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Message))
}

// restrictionClause tells the model which modules the caller may use, so it
// refuses out-of-scope requests instead of hallucinating around hidden tools.
func restrictionClause(modules []string) string {
	if len(modules) == 0 {
		return "\n\nThis user has no module access. Politely refuse any request that needs business data."
	}
	return fmt.Sprintf(
		"\n\nThis user may only access these modules: %s. Politely refuse requests about other modules.",
		strings.Join(modules, ", "))
}

// dispatch executes one tool call and wraps the envelope into a tool turn
// correlated by call id. Tool failures become part of the conversation, not
// errors.
func (o *Orchestrator) dispatch(ctx context.Context, call llm.ToolCall, token string) llms.MessageContent {
	started := time.Now()
	result := o.registry.Execute(ctx, call.Name, call.Args, token)
	if result.Success {
		o.collector.RecordTiming(metrics.OpToolExecute, time.Since(started))
	} else {
		o.collector.RecordError(metrics.OpToolExecute, time.Since(started))
	}

	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{"success":false,"message":"tool result could not be encoded"}`)
	}

	return llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{llms.ToolCallResponse{
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    string(payload),
		}},
	}
}

// assistantToolTurn echoes the model's tool calls back into the context so
// the follow-up invocation sees what it asked for.
func assistantToolTurn(calls []llm.ToolCall) llms.MessageContent {
	parts := make([]llms.ContentPart, 0, len(calls))
	for _, call := range calls {
		args, err := json.Marshal(call.Args)
		if err != nil {
			args = []byte("{}")
		}
		parts = append(parts, llms.ToolCall{
			ID:   call.ID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      call.Name,
				Arguments: string(args),
			},
		})
	}
	return llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts}
}

// persist appends the finished exchange and saves the trimmed transcript.
// Save failures are logged and swallowed; the reply already exists.
func (o *Orchestrator) persist(ctx context.Context, req ChatRequest, history []store.Turn, reply string) {
	now := time.Now()
	turns := append(history,
		store.Turn{Role: store.RoleUser, Content: req.Message, Timestamp: now},
		store.Turn{Role: store.RoleAssistant, Content: reply, Timestamp: now},
	)
	turns = store.Trim(turns, o.maxHistory)

	started := time.Now()
	if err := o.conversations.Save(ctx, req.SessionID, req.CallerID, turns); err != nil {
		o.collector.RecordError(metrics.OpConversationSave, time.Since(started))
		o.logger.Warn("conversation save failed", "session_id", req.SessionID, "error", err)
		return
	}
	o.collector.RecordTiming(metrics.OpConversationSave, time.Since(started))
}

func (o *Orchestrator) recordUsage(resp *llms.ContentResponse, elapsed time.Duration) {
	var in, out int64
	if info := resp.Choices[0].GenerationInfo; info != nil {
		in = tokenCount(info, "PromptTokens", "prompt_tokens")
		out = tokenCount(info, "CompletionTokens", "completion_tokens")
	}
	o.collector.RecordModelUsage(elapsed, in, out)
}

func tokenCount(info map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// acquireSession takes the per-session lock, registering as a waiter first so
// the entry stays alive until releaseSession drops the last reference.
func (o *Orchestrator) acquireSession(sessionID string) *sessionLock {
	o.mu.Lock()
	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		o.locks[sessionID] = lock
	}
	lock.refs++
	o.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (o *Orchestrator) releaseSession(sessionID string, lock *sessionLock) {
	lock.mu.Unlock()

	o.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(o.locks, sessionID)
	}
	o.mu.Unlock()
}
