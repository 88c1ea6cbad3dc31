package tools

import (
	"context"
	"strconv"

	"github.com/msi-gate/assistant/internal/gateway"
	"github.com/tmc/langchaingo/llms"
)

// QuotationSearch wraps the quotation listing endpoint.
type QuotationSearch struct {
	client *gateway.Client
}

// NewQuotationSearch creates the search_quotations tool.
func NewQuotationSearch(client *gateway.Client) *QuotationSearch {
	return &QuotationSearch{client: client}
}

func (t *QuotationSearch) Name() string   { return "search_quotations" }
func (t *QuotationSearch) Module() string { return ModuleQuotation }

func (t *QuotationSearch) Definition() llms.Tool {
	return definition(t.Name(),
		"Search quotations by number, status, or date range.",
		map[string]any{
			"quotationNumber": prop("string", "Quotation number to look up"),
			"status":          prop("string", "Quotation status (draft, sent, approved, rejected)"),
			"startDate":       prop("string", "Range start in YYYY-MM-DD format"),
			"endDate":         prop("string", "Range end in YYYY-MM-DD format"),
			"limit":           prop("number", "Maximum number of results (default 10)"),
		}, nil)
}

func (t *QuotationSearch) Execute(ctx context.Context, args map[string]any, token string) Result {
	query := map[string]string{
		"limit": strconv.Itoa(intArg(args, "limit", 10)),
	}
	for _, key := range []string{"quotationNumber", "status", "startDate", "endDate"} {
		if v := stringArg(args, key); v != "" {
			query[key] = v
		}
	}

	res := t.client.Get(ctx, "/api/quotations", query, token)
	if !res.OK() {
		return Result{Success: false, Message: fallbackMessage(res, "failed to fetch quotation data"), Status: res.Status}
	}
	return Result{Success: true, Data: res.Body, Message: "quotation data retrieved", Status: res.Status}
}
