package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/msi-gate/assistant/internal/llm"
	"github.com/msi-gate/assistant/internal/store"
	"github.com/msi-gate/assistant/internal/tools"
)

// fakeModel replays scripted responses. The last response repeats once the
// script runs out.
type fakeModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	calls     [][]llms.MessageContent
	err       error
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, msgs)
	if f.err != nil {
		return nil, f.err
	}
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func (f *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func textResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func toolResponse(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:   id,
			Type: "function",
			FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
		}},
	}}}
}

type scriptedTool struct {
	name     string
	lastArgs map[string]any
	result   tools.Result
}

func (s *scriptedTool) Name() string   { return s.name }
func (s *scriptedTool) Module() string { return tools.ModuleGeneral }

func (s *scriptedTool) Definition() llms.Tool {
	return llms.Tool{Type: "function", Function: &llms.FunctionDefinition{Name: s.name}}
}

func (s *scriptedTool) Execute(_ context.Context, args map[string]any, _ string) tools.Result {
	s.lastArgs = args
	return s.result
}

type flakyStore struct {
	store.ConversationStore
	loadErr error
	saveErr error
}

func (f *flakyStore) Load(ctx context.Context, sessionID string) ([]store.Turn, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.ConversationStore.Load(ctx, sessionID)
}

func (f *flakyStore) Save(ctx context.Context, sessionID, callerID string, turns []store.Turn) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.ConversationStore.Save(ctx, sessionID, callerID, turns)
}

func newTestOrchestrator(model *fakeModel, conversations store.ConversationStore, reg *tools.Registry) *Orchestrator {
	logger := slog.New(slog.DiscardHandler)
	if reg == nil {
		reg = tools.NewRegistry(logger)
	}
	if conversations == nil {
		conversations = store.NewMemory()
	}
	return New(Options{
		Model:         llm.NewWithModel(model, "fake-model", 0.2, 512),
		Registry:      reg,
		Prompts:       NewPromptResolver(nil, time.Minute, logger),
		Conversations: conversations,
		Logger:        logger,
		MaxHistory:    10,
		MaxToolRounds: 3,
	})
}

func chatReq(message string) ChatRequest {
	return ChatRequest{CallerID: "user_9", SessionID: "session_1", Message: message, Token: "token"}
}

func TestChatPlainReply(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("Hello! How can I help?")}}
	mem := store.NewMemory()
	o := newTestOrchestrator(model, mem, nil)

	res, err := o.Chat(context.Background(), chatReq("halo"))

	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", res.Reply)
	assert.Empty(t, res.ToolsUsed)

	turns, err := mem.Load(context.Background(), "session_1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, store.RoleUser, turns[0].Role)
	assert.Equal(t, "halo", turns[0].Content)
	assert.Equal(t, store.RoleAssistant, turns[1].Role)
}

func TestChatUsesStoredHistory(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("reply")}}
	o := newTestOrchestrator(model, nil, nil)

	_, err := o.Chat(context.Background(), chatReq("first message"))
	require.NoError(t, err)
	_, err = o.Chat(context.Background(), chatReq("second message"))
	require.NoError(t, err)

	// system + first user + first reply + second user
	require.Len(t, model.calls, 2)
	assert.Len(t, model.calls[1], 4)
}

func TestChatToolLoop(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("call_1", "get_data", `{"limit":5}`),
		textResponse("Found 5 records."),
	}}
	logger := slog.New(slog.DiscardHandler)
	reg := tools.NewRegistry(logger)
	tool := &scriptedTool{name: "get_data", result: tools.OK(map[string]any{"rows": 5}, "ok")}
	reg.Register(tool)
	o := newTestOrchestrator(model, nil, reg)

	res, err := o.Chat(context.Background(), chatReq("how many records?"))

	require.NoError(t, err)
	assert.Equal(t, "Found 5 records.", res.Reply)
	assert.Equal(t, []string{"get_data"}, res.ToolsUsed)
	assert.Equal(t, float64(5), tool.lastArgs["limit"])

	// The follow-up invocation carries the echoed call and the tool turn.
	require.Len(t, model.calls, 2)
	second := model.calls[1]
	require.Len(t, second, 4)
	assert.Equal(t, llms.ChatMessageTypeAI, second[2].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, second[3].Role)

	resp, ok := second[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call_1", resp.ToolCallID)
	assert.Contains(t, resp.Content, `"success":true`)
}

func TestChatToolFailureContinues(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("call_1", "get_data", `{}`),
		textResponse("The lookup failed, please try later."),
	}}
	logger := slog.New(slog.DiscardHandler)
	reg := tools.NewRegistry(logger)
	reg.Register(&scriptedTool{name: "get_data", result: tools.Fail("backend unavailable")})
	o := newTestOrchestrator(model, nil, reg)

	res, err := o.Chat(context.Background(), chatReq("lookup"))

	require.NoError(t, err)
	assert.Equal(t, "The lookup failed, please try later.", res.Reply)

	resp := model.calls[1][3].Parts[0].(llms.ToolCallResponse)
	assert.Contains(t, resp.Content, "backend unavailable")
}

func TestChatToolLoopIsBounded(t *testing.T) {
	// The model keeps asking for tools forever.
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("call_1", "get_data", `{}`),
	}}
	logger := slog.New(slog.DiscardHandler)
	reg := tools.NewRegistry(logger)
	reg.Register(&scriptedTool{name: "get_data", result: tools.OK(nil, "ok")})
	o := newTestOrchestrator(model, nil, reg)

	_, err := o.Chat(context.Background(), chatReq("loop"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool loop exceeded")
}

func TestChatEmptyReplyFallsBack(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("   ")}}
	o := newTestOrchestrator(model, nil, nil)

	res, err := o.Chat(context.Background(), chatReq("halo"))

	require.NoError(t, err)
	assert.Equal(t, FallbackReply, res.Reply)
}

func TestChatStoreFailuresAreSoft(t *testing.T) {
	t.Run("load failure starts a fresh conversation", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentResponse{textResponse("reply")}}
		broken := &flakyStore{ConversationStore: store.NewMemory(), loadErr: errors.New("db down")}
		o := newTestOrchestrator(model, broken, nil)

		res, err := o.Chat(context.Background(), chatReq("halo"))

		require.NoError(t, err)
		assert.Equal(t, "reply", res.Reply)
	})

	t.Run("save failure still returns the reply", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentResponse{textResponse("reply")}}
		broken := &flakyStore{ConversationStore: store.NewMemory(), saveErr: errors.New("db down")}
		o := newTestOrchestrator(model, broken, nil)

		res, err := o.Chat(context.Background(), chatReq("halo"))

		require.NoError(t, err)
		assert.Equal(t, "reply", res.Reply)
	})
}

func TestChatModelErrorPropagates(t *testing.T) {
	model := &fakeModel{err: errors.New("rate limited")}
	o := newTestOrchestrator(model, nil, nil)

	_, err := o.Chat(context.Background(), chatReq("halo"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestChatTrimsHistory(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("reply")}}
	mem := store.NewMemory()
	logger := slog.New(slog.DiscardHandler)
	o := New(Options{
		Model:         llm.NewWithModel(model, "fake-model", 0.2, 512),
		Registry:      tools.NewRegistry(logger),
		Prompts:       NewPromptResolver(nil, time.Minute, logger),
		Conversations: mem,
		Logger:        logger,
		MaxHistory:    1,
	})

	for i := 0; i < 3; i++ {
		_, err := o.Chat(context.Background(), chatReq("again"))
		require.NoError(t, err)
	}

	turns, err := mem.Load(context.Background(), "session_1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestChatRestrictionClause(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("reply")}}
	o := newTestOrchestrator(model, nil, nil)

	req := chatReq("show me quotations")
	req.AllowedModules = []string{"hr"}
	_, err := o.Chat(context.Background(), req)
	require.NoError(t, err)

	system := model.calls[0][0]
	require.Equal(t, llms.ChatMessageTypeSystem, system.Role)
	text := system.Parts[0].(llms.TextContent).Text
	assert.Contains(t, text, "may only access these modules: hr")
}

func TestSessionLocksAreReleased(t *testing.T) {
	t.Run("one-shot sessions leave no lock entries behind", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentResponse{textResponse("reply")}}
		o := newTestOrchestrator(model, nil, nil)

		for i := 0; i < 20; i++ {
			req := chatReq("halo")
			req.SessionID = fmt.Sprintf("session_anonymous_%d", i)
			_, err := o.Chat(context.Background(), req)
			require.NoError(t, err)
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		assert.Empty(t, o.locks)
	})

	t.Run("failed turns release their lock too", func(t *testing.T) {
		model := &fakeModel{err: errors.New("rate limited")}
		o := newTestOrchestrator(model, nil, nil)

		_, err := o.Chat(context.Background(), chatReq("halo"))
		require.Error(t, err)

		o.mu.Lock()
		defer o.mu.Unlock()
		assert.Empty(t, o.locks)
	})

	t.Run("concurrent turns on one session drain to zero", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentResponse{textResponse("reply")}}
		o := newTestOrchestrator(model, nil, nil)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := o.Chat(context.Background(), chatReq("halo"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		o.mu.Lock()
		defer o.mu.Unlock()
		assert.Empty(t, o.locks)
	})
}

func TestHistoryAndClear(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("reply")}}
	mem := store.NewMemory()
	o := newTestOrchestrator(model, mem, nil)

	_, err := o.Chat(context.Background(), chatReq("halo"))
	require.NoError(t, err)

	turns, err := o.History(context.Background(), "session_1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	require.NoError(t, o.Clear(context.Background(), "session_1"))
	turns, err = o.History(context.Background(), "session_1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
