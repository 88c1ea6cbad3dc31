package tools

import (
	"context"
	"strconv"

	"github.com/msi-gate/assistant/internal/gateway"
	"github.com/tmc/langchaingo/llms"
)

// CandidateSearch wraps the HR candidate listing endpoint.
type CandidateSearch struct {
	client *gateway.Client
}

// NewCandidateSearch creates the search_hr_candidates tool.
func NewCandidateSearch(client *gateway.Client) *CandidateSearch {
	return &CandidateSearch{client: client}
}

func (t *CandidateSearch) Name() string   { return "search_hr_candidates" }
func (t *CandidateSearch) Module() string { return ModuleHR }

func (t *CandidateSearch) Definition() llms.Tool {
	return definition(t.Name(),
		"Search HR candidates by month, status, or a free-text keyword. Use this for questions about new candidates, candidates for a given month, or candidate lookups.",
		map[string]any{
			"month":   prop("string", "Month filter in YYYY-MM format (e.g. 2025-01). Omit to search all."),
			"status":  prop("string", "Candidate status (active, pending, hired, rejected)"),
			"keyword": prop("string", "Keyword matched against name, email, or position"),
			"limit":   prop("number", "Maximum number of results (default 10)"),
		}, nil)
}

func (t *CandidateSearch) Execute(ctx context.Context, args map[string]any, token string) Result {
	query := map[string]string{
		"limit": strconv.Itoa(intArg(args, "limit", 10)),
	}
	for _, key := range []string{"month", "status", "keyword"} {
		if v := stringArg(args, key); v != "" {
			query[key] = v
		}
	}

	res := t.client.Get(ctx, "/api/candidates", query, token)
	if !res.OK() {
		return Result{Success: false, Message: fallbackMessage(res, "failed to fetch candidate data"), Status: res.Status}
	}
	return Result{Success: true, Data: res.Body, Message: "candidate data retrieved", Status: res.Status}
}

// EmployeeSearch wraps the HR employee listing endpoint.
type EmployeeSearch struct {
	client *gateway.Client
}

// NewEmployeeSearch creates the search_hr_employees tool.
func NewEmployeeSearch(client *gateway.Client) *EmployeeSearch {
	return &EmployeeSearch{client: client}
}

func (t *EmployeeSearch) Name() string   { return "search_hr_employees" }
func (t *EmployeeSearch) Module() string { return ModuleHR }

func (t *EmployeeSearch) Definition() llms.Tool {
	return definition(t.Name(),
		"Search employee records by name, department, or status.",
		map[string]any{
			"name":       prop("string", "Employee name to search for"),
			"department": prop("string", "Employee department"),
			"status":     prop("string", "Employee status (active, inactive, on_leave)"),
			"limit":      prop("number", "Maximum number of results (default 10)"),
		}, nil)
}

func (t *EmployeeSearch) Execute(ctx context.Context, args map[string]any, token string) Result {
	query := map[string]string{
		"limit": strconv.Itoa(intArg(args, "limit", 10)),
	}
	for _, key := range []string{"name", "department", "status"} {
		if v := stringArg(args, key); v != "" {
			query[key] = v
		}
	}

	res := t.client.Get(ctx, "/api/employees", query, token)
	if !res.OK() {
		return Result{Success: false, Message: fallbackMessage(res, "failed to fetch employee data"), Status: res.Status}
	}
	return Result{Success: true, Data: res.Body, Message: "employee data retrieved", Status: res.Status}
}

// fallbackMessage prefers the downstream error message when present.
func fallbackMessage(res *gateway.CallResult, fallback string) string {
	if res.Message != "" {
		return res.Message
	}
	return fallback
}
