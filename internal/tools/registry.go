package tools

import (
	"context"
	"log/slog"
	"slices"

	"github.com/msi-gate/assistant/internal/gateway"
	"github.com/tmc/langchaingo/llms"
)

// Registry maps tool names to implementations. It is built once at startup
// and read-only afterwards.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool. Later registrations with the same name replace
// earlier ones.
func (r *Registry) Register(tool Tool) {
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Definitions returns the catalog offered to the model, in registration
// order. A non-nil allowedModules list filters out tools belonging to other
// modules entirely, so the model cannot see them. General-purpose tools are
// always included.
func (r *Registry) Definitions(allowedModules []string) []llms.Tool {
	defs := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		if !moduleAllowed(tool.Module(), allowedModules) {
			continue
		}
		defs = append(defs, tool.Definition())
	}
	return defs
}

// Execute dispatches a named tool. Unknown names yield a failure envelope,
// never an error or panic.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, token string) Result {
	tool, ok := r.tools[name]
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", name)
		return Fail("tool %s is not available", name)
	}
	if args == nil {
		args = map[string]any{}
	}

	result := tool.Execute(ctx, args, token)
	if !result.Success {
		r.logger.Info("tool execution failed", "tool", name, "message", result.Message)
	}
	return result
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return len(r.tools)
}

func moduleAllowed(module string, allowed []string) bool {
	if allowed == nil {
		return true
	}
	if module == ModuleGeneral {
		return true
	}
	return slices.Contains(allowed, module)
}

// DefaultRegistry builds the full production catalog against the given
// gateway client and policy.
func DefaultRegistry(client *gateway.Client, policy *gateway.Policy, aggregateMaxPage int, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewCandidateSearch(client))
	r.Register(NewEmployeeSearch(client))
	r.Register(NewQuotationSearch(client))
	r.Register(NewProductSearch(client))
	r.Register(NewGatewayCall(client, policy))
	r.Register(NewRecordCount(client, policy, aggregateMaxPage))
	r.Register(NewRecordSum(client, policy, aggregateMaxPage))
	r.Register(NewSummarize())
	return r
}
