package tools

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// Summarize condenses previously fetched data locally, without another
// network round trip.
type Summarize struct{}

// NewSummarize creates the summarize_data tool.
func NewSummarize() *Summarize {
	return &Summarize{}
}

func (t *Summarize) Name() string   { return "summarize_data" }
func (t *Summarize) Module() string { return ModuleGeneral }

func (t *Summarize) Definition() llms.Tool {
	return definition(t.Name(),
		"Summarize or analyze data that was already fetched. Use this to condense long results before answering.",
		map[string]any{
			"data": prop("object", "The data to summarize"),
			"summaryType": map[string]any{
				"type":        "string",
				"description": "Kind of summary (count, statistics, key_points)",
				"enum":        []string{"count", "statistics", "key_points"},
			},
		}, nil)
}

func (t *Summarize) Execute(_ context.Context, args map[string]any, _ string) Result {
	data := args["data"]
	summaryType := stringArg(args, "summaryType")
	if summaryType == "" {
		summaryType = "key_points"
	}

	switch summaryType {
	case "count":
		count := itemCount(data)
		return OK(map[string]any{"count": count}, fmt.Sprintf("total items: %d", count))

	case "statistics":
		if items, ok := data.([]any); ok {
			return OK(map[string]any{"total": len(items)}, "data statistics")
		}
		return OK(map[string]any{"total": itemCount(data)}, "data statistics")

	default:
		if items, ok := data.([]any); ok {
			head := items
			if len(head) > 5 {
				head = head[:5]
			}
			return OK(map[string]any{"summary": "data summarized", "items": head}, "data summarized")
		}
		return OK(map[string]any{"summary": "data summarized", "items": data}, "data summarized")
	}
}

// itemCount counts list items, looking one level into the common data
// envelope when the value is not itself a list.
func itemCount(data any) int {
	switch v := data.(type) {
	case []any:
		return len(v)
	case map[string]any:
		if nested, ok := v["data"].([]any); ok {
			return len(nested)
		}
	}
	return 0
}
