package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/msi-gate/assistant/internal/gateway"
	"github.com/tmc/langchaingo/llms"
)

// The downstream services expose no aggregate endpoints, so counting and
// summing is done client-side over one large page of records. The page
// ceiling bounds the cost and makes the approximation explicit: totals are
// exact only while the dataset fits in a single page.

// RecordCount counts downstream records matching client-side filters.
type RecordCount struct {
	client  *gateway.Client
	policy  *gateway.Policy
	maxPage int
}

// NewRecordCount creates the count_records tool.
func NewRecordCount(client *gateway.Client, policy *gateway.Policy, maxPage int) *RecordCount {
	if maxPage <= 0 {
		maxPage = 1000
	}
	return &RecordCount{client: client, policy: policy, maxPage: maxPage}
}

func (t *RecordCount) Name() string   { return "count_records" }
func (t *RecordCount) Module() string { return ModuleGateway }

func (t *RecordCount) Definition() llms.Tool {
	return definition(t.Name(),
		"Count records behind a gateway listing endpoint, optionally filtered by field values. Counting is approximate above the page ceiling.",
		map[string]any{
			"path":    prop("string", "Listing endpoint path, e.g. /api/quotations"),
			"filters": prop("object", "Field to value map; values match case-insensitively by equality or substring"),
			"search":  prop("string", "Free-text search forwarded to the endpoint"),
		}, []string{"path"})
}

func (t *RecordCount) Execute(ctx context.Context, args map[string]any, token string) Result {
	rows, filters, result := fetchPage(ctx, t.client, t.policy, t.maxPage, args, token)
	if result != nil {
		return *result
	}

	count := 0
	for _, row := range rows {
		if matchesFilters(row, filters) {
			count++
		}
	}

	return OK(map[string]any{
		"count":           count,
		"filters_applied": filters,
		"page_ceiling":    t.maxPage,
	}, fmt.Sprintf("counted %d matching records", count))
}

// RecordSum sums a numeric field over downstream records matching
// client-side filters.
type RecordSum struct {
	client  *gateway.Client
	policy  *gateway.Policy
	maxPage int
}

// NewRecordSum creates the sum_records tool.
func NewRecordSum(client *gateway.Client, policy *gateway.Policy, maxPage int) *RecordSum {
	if maxPage <= 0 {
		maxPage = 1000
	}
	return &RecordSum{client: client, policy: policy, maxPage: maxPage}
}

func (t *RecordSum) Name() string   { return "sum_records" }
func (t *RecordSum) Module() string { return ModuleGateway }

func (t *RecordSum) Definition() llms.Tool {
	return definition(t.Name(),
		"Sum a numeric field over records behind a gateway listing endpoint, optionally filtered by field values. Summing is approximate above the page ceiling.",
		map[string]any{
			"path":    prop("string", "Listing endpoint path, e.g. /api/quotations"),
			"field":   prop("string", "Numeric field to sum, e.g. total_amount"),
			"filters": prop("object", "Field to value map; values match case-insensitively by equality or substring"),
			"search":  prop("string", "Free-text search forwarded to the endpoint"),
		}, []string{"path", "field"})
}

func (t *RecordSum) Execute(ctx context.Context, args map[string]any, token string) Result {
	field := stringArg(args, "field")
	if field == "" {
		return Fail("field argument is required")
	}

	rows, filters, result := fetchPage(ctx, t.client, t.policy, t.maxPage, args, token)
	if result != nil {
		return *result
	}

	var sum float64
	counted := 0
	for _, row := range rows {
		if !matchesFilters(row, filters) {
			continue
		}
		if v, ok := numericField(row, field); ok {
			sum += v
			counted++
		}
	}

	return OK(map[string]any{
		"sum":             sum,
		"field":           field,
		"records":         counted,
		"filters_applied": filters,
		"page_ceiling":    t.maxPage,
	}, fmt.Sprintf("summed %s over %d matching records", field, counted))
}

// fetchPage validates the path, fetches one bounded page, and extracts the
// row list. On failure it returns a ready-made failure result.
func fetchPage(ctx context.Context, client *gateway.Client, policy *gateway.Policy, maxPage int, args map[string]any, token string) ([]map[string]any, map[string]string, *Result) {
	path := stringArg(args, "path")
	if path == "" {
		r := Fail("path argument is required")
		return nil, nil, &r
	}
	if !policy.IsAllowed(path) {
		r := Fail("path %s is not allowed through the gateway", path)
		return nil, nil, &r
	}

	filters := map[string]string{}
	for k, v := range mapArg(args, "filters") {
		filters[k] = fmt.Sprint(v)
	}

	res := client.List(ctx, path, gateway.ListQuery{
		Page:      1,
		Limit:     maxPage,
		SortOrder: "desc",
		Search:    stringArg(args, "search"),
	}, token)
	if !res.OK() {
		r := Result{Success: false, Message: fallbackMessage(res, "failed to fetch records"), Status: res.Status}
		return nil, nil, &r
	}

	return extractRows(res.Body), filters, nil
}

// extractRows digs the record list out of the common response envelopes.
func extractRows(body any) []map[string]any {
	switch v := body.(type) {
	case []any:
		return toRowMaps(v)
	case map[string]any:
		for _, key := range []string{"data", "rows", "items", "results"} {
			if nested, ok := v[key]; ok {
				if rows := extractRows(nested); rows != nil {
					return rows
				}
			}
		}
	}
	return nil
}

func toRowMaps(items []any) []map[string]any {
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

// matchesFilters applies case-insensitive equality-or-substring matching on
// the named fields.
func matchesFilters(row map[string]any, filters map[string]string) bool {
	for field, want := range filters {
		got, ok := row[field]
		if !ok {
			return false
		}
		gotStr := strings.ToLower(fmt.Sprint(got))
		wantStr := strings.ToLower(want)
		if gotStr != wantStr && !strings.Contains(gotStr, wantStr) {
			return false
		}
	}
	return true
}

func numericField(row map[string]any, field string) (float64, bool) {
	switch v := row[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
