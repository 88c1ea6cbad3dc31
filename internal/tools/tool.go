// Package tools implements the assistant's tool catalog: fixed wrappers over
// downstream endpoints, the generic gateway tool, and local aggregation
// helpers. Every tool returns a uniform result envelope, never an error.
package tools

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// Module names used to scope tools by access-restriction lists.
const (
	ModuleHR        = "hr"
	ModuleQuotation = "quotation"
	ModuleCatalog   = "catalog"
	ModuleGateway   = "gateway"
	ModuleGeneral   = "general"
)

// Result is the envelope every tool execution produces, success or not.
// It is serialized verbatim into the tool turn fed back to the model.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

// OK builds a success result.
func OK(data any, message string) Result {
	return Result{Success: true, Data: data, Message: message}
}

// Fail builds a failure result with a formatted message.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Tool is one callable entry in the catalog.
type Tool interface {
	// Name is the function name offered to the model.
	Name() string
	// Module scopes the tool for access-restriction filtering.
	Module() string
	// Definition is the JSON-schema declaration sent to the provider.
	Definition() llms.Tool
	// Execute runs the tool with normalized arguments and the caller's
	// bearer token. Failures are reported through the envelope.
	Execute(ctx context.Context, args map[string]any, token string) Result
}

// definition is a helper for building function declarations.
func definition(name, description string, properties map[string]any, required []string) llms.Tool {
	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

// stringArg reads an optional string argument.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg reads an optional numeric argument, tolerating the float64 values
// JSON decoding produces.
func intArg(args map[string]any, key string, defaultVal int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}

// mapArg reads an optional object argument.
func mapArg(args map[string]any, key string) map[string]any {
	if v, ok := args[key].(map[string]any); ok {
		return v
	}
	return nil
}
