// Package validation checks proposed customer names against the remote
// gate_sso customer table, using the chat model to judge near-duplicates
// that plain string comparison misses.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/msi-gate/assistant/internal/dblink"
	"github.com/msi-gate/assistant/internal/llm"
)

// judgeTemperature keeps the duplicate judgment close to deterministic.
const judgeTemperature = 0.3

// Result is the outcome of one duplicate check.
type Result struct {
	IsDuplicate bool     `json:"is_duplicate"`
	Matches     []string `json:"matches,omitempty"`
	Confidence  string   `json:"confidence"`
	Reason      string   `json:"reason"`
}

// NameFetcher loads the existing customer names to compare against.
type NameFetcher interface {
	CustomerNames(ctx context.Context) ([]string, error)
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LinkCustomers fetches customer names from the remote database over the
// managed dblink connection, retrying once when the link is stale.
type LinkCustomers struct {
	db   rowQuerier
	link *dblink.Manager
}

// NewLinkCustomers creates the dblink-backed name fetcher.
func NewLinkCustomers(db rowQuerier, link *dblink.Manager) *LinkCustomers {
	return &LinkCustomers{db: db, link: link}
}

func (l *LinkCustomers) CustomerNames(ctx context.Context) ([]string, error) {
	var names []string
	err := l.link.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		names = names[:0]
		rows, err := l.db.Query(ctx, fmt.Sprintf(
			`SELECT customer_name FROM dblink('%s',
			   'SELECT customer_name FROM customers WHERE is_delete = false')
			 AS t(customer_name text)`,
			l.link.ConnName()))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			if strings.TrimSpace(name) != "" {
				names = append(names, name)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Service judges whether a proposed customer name duplicates an existing one.
type Service struct {
	customers NameFetcher
	model     *llm.Model
	logger    *slog.Logger
}

// NewService creates the validation service.
func NewService(customers NameFetcher, model *llm.Model, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{customers: customers, model: model, logger: logger}
}

// ValidateCustomer checks a proposed name. An exact case-insensitive match
// short-circuits; otherwise the model judges similarity against the full
// name list.
func (s *Service) ValidateCustomer(ctx context.Context, name string) (*Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("customer name is required")
	}

	existing, err := s.customers.CustomerNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch existing customers: %w", err)
	}

	if len(existing) == 0 {
		return &Result{
			IsDuplicate: false,
			Confidence:  "high",
			Reason:      "no existing customers to compare against",
		}, nil
	}

	for _, candidate := range existing {
		if strings.EqualFold(strings.TrimSpace(candidate), name) {
			return &Result{
				IsDuplicate: true,
				Matches:     []string{candidate},
				Confidence:  "high",
				Reason:      "exact name match",
			}, nil
		}
	}

	response, err := s.model.InvokeWithSystem(ctx, judgeSystemPrompt, judgeUserPrompt(name, existing), judgeTemperature)
	if err != nil {
		return nil, fmt.Errorf("duplicate judgment failed: %w", err)
	}

	result := parseJudgment(response)
	if result == nil {
		s.logger.Warn("unparseable duplicate judgment, using keyword heuristic", "customer", name)
		result = heuristicJudgment(response)
	}
	return result, nil
}

const judgeSystemPrompt = `You check whether a proposed customer name duplicates an existing customer. ` +
	`Consider abbreviations, legal suffixes (PT, CV, Tbk, Ltd), word order, and common misspellings. ` +
	`Respond with only a JSON object: ` +
	`{"is_duplicate": boolean, "matches": [string], "confidence": "high"|"medium"|"low", "reason": string}`

func judgeUserPrompt(name string, existing []string) string {
	return fmt.Sprintf("Proposed customer name: %q\n\nExisting customers:\n%s",
		name, strings.Join(existing, "\n"))
}

var jsonBlockPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// parseJudgment extracts the JSON object from the model response, tolerating
// markdown fences and surrounding prose. It returns nil when no usable
// object is present.
func parseJudgment(response string) *Result {
	block := jsonBlockPattern.FindString(response)
	if block == "" {
		return nil
	}

	var parsed struct {
		IsDuplicate any      `json:"is_duplicate"`
		Matches     []string `json:"matches"`
		Confidence  string   `json:"confidence"`
		Reason      string   `json:"reason"`
	}
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return nil
	}

	result := &Result{
		IsDuplicate: coerceBool(parsed.IsDuplicate),
		Matches:     parsed.Matches,
		Confidence:  parsed.Confidence,
		Reason:      parsed.Reason,
	}
	if result.Confidence == "" {
		result.Confidence = "medium"
	}
	if result.Reason == "" {
		result.Reason = "model judgment"
	}
	return result
}

// heuristicJudgment keeps the endpoint usable when the model ignores the
// response format entirely.
func heuristicJudgment(response string) *Result {
	lower := strings.ToLower(response)
	negated := strings.Contains(lower, "not a duplicate") || strings.Contains(lower, "no duplicate")
	isDup := !negated && (strings.Contains(lower, "duplicate") || strings.Contains(lower, "already exists"))
	return &Result{
		IsDuplicate: isDup,
		Confidence:  "low",
		Reason:      "keyword heuristic over an unstructured model response",
	}
}

func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true") || strings.EqualFold(strings.TrimSpace(b), "yes")
	default:
		return false
	}
}
