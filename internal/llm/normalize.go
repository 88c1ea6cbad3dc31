package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// ToolCall is the canonical form every provider wire-shape is normalized to
// before dispatch. ID is always non-empty; Args is always non-nil.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// NormalizeToolCalls extracts tool calls from a model response choice,
// whichever of the known wire shapes the provider used: the tool_calls list,
// the singular legacy function_call field, or legacy maps nested under the
// generation metadata. Calls without a resolvable name are dropped; missing
// ids are synthesized so results can be correlated back to the turn.
func NormalizeToolCalls(choice *llms.ContentChoice) []ToolCall {
	if choice == nil {
		return nil
	}

	var calls []ToolCall
	if len(choice.ToolCalls) > 0 {
		calls = fromToolCallList(choice.ToolCalls)
	} else if choice.FuncCall != nil {
		calls = fromLegacyFunctionCall(choice.FuncCall)
	} else {
		calls = fromGenerationInfo(choice.GenerationInfo)
	}

	return assignIDs(calls)
}

// fromToolCallList handles the modern tool_calls list shape.
func fromToolCallList(list []llms.ToolCall) []ToolCall {
	calls := make([]ToolCall, 0, len(list))
	for _, tc := range list {
		if tc.FunctionCall == nil || tc.FunctionCall.Name == "" {
			continue
		}
		calls = append(calls, ToolCall{
			ID:   tc.ID,
			Name: tc.FunctionCall.Name,
			Args: ParseArguments(tc.FunctionCall.Arguments),
		})
	}
	return calls
}

// fromLegacyFunctionCall handles the singular function_call shape emitted by
// older OpenAI-compatible backends.
func fromLegacyFunctionCall(fc *llms.FunctionCall) []ToolCall {
	if fc.Name == "" {
		return nil
	}
	return []ToolCall{{
		Name: fc.Name,
		Args: ParseArguments(fc.Arguments),
	}}
}

// fromGenerationInfo handles tool calls some providers tuck into the response
// metadata instead of first-class fields.
func fromGenerationInfo(info map[string]any) []ToolCall {
	if info == nil {
		return nil
	}

	if raw, ok := info["tool_calls"].([]any); ok {
		calls := make([]ToolCall, 0, len(raw))
		for _, item := range raw {
			if call, ok := toolCallFromMap(item); ok {
				calls = append(calls, call)
			}
		}
		return calls
	}

	if call, ok := toolCallFromMap(info["function_call"]); ok {
		return []ToolCall{call}
	}
	return nil
}

func toolCallFromMap(item any) (ToolCall, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return ToolCall{}, false
	}
	// Either {"id":..,"function":{"name":..,"arguments":..}} or a flat
	// {"name":..,"arguments":..}.
	if fn, ok := m["function"].(map[string]any); ok {
		id, _ := m["id"].(string)
		name, _ := fn["name"].(string)
		if name == "" {
			return ToolCall{}, false
		}
		return ToolCall{ID: id, Name: name, Args: argsFromAny(fn["arguments"])}, true
	}
	name, _ := m["name"].(string)
	if name == "" {
		return ToolCall{}, false
	}
	return ToolCall{Name: name, Args: argsFromAny(m["arguments"])}, true
}

func argsFromAny(v any) map[string]any {
	switch args := v.(type) {
	case string:
		return ParseArguments(args)
	case map[string]any:
		return args
	default:
		return map[string]any{}
	}
}

// ParseArguments decodes a JSON argument payload. Malformed payloads fall back
// to an empty argument set so the tool applies its own defaults instead of the
// whole turn failing on a parse error.
func ParseArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// assignIDs fills in missing call ids. Synthesized ids are derived from the
// turn timestamp plus the ordinal index, unique within the turn.
func assignIDs(calls []ToolCall) []ToolCall {
	ts := time.Now().UnixMilli()
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = fmt.Sprintf("call_%d_%d", ts, i)
		}
		if calls[i].Args == nil {
			calls[i].Args = map[string]any{}
		}
	}
	return calls
}

// ExtractText flattens the textual content of a response choice. Providers
// usually return a plain string, but some wrap content in a list of parts
// under the generation metadata; non-empty segments are joined in order.
func ExtractText(choice *llms.ContentChoice) string {
	if choice == nil {
		return ""
	}
	if strings.TrimSpace(choice.Content) != "" {
		return choice.Content
	}

	parts, ok := choice.GenerationInfo["content"].([]any)
	if !ok {
		return ""
	}
	var segments []string
	for _, part := range parts {
		switch p := part.(type) {
		case string:
			if strings.TrimSpace(p) != "" {
				segments = append(segments, p)
			}
		case map[string]any:
			if text, ok := p["text"].(string); ok && strings.TrimSpace(text) != "" {
				segments = append(segments, text)
			}
		}
	}
	return strings.Join(segments, "\n")
}
