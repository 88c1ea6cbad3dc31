package tools

import (
	"context"
	"strconv"

	"github.com/msi-gate/assistant/internal/gateway"
	"github.com/tmc/langchaingo/llms"
)

// ProductSearch wraps the eCatalog product listing endpoint.
type ProductSearch struct {
	client *gateway.Client
}

// NewProductSearch creates the search_catalog_products tool.
func NewProductSearch(client *gateway.Client) *ProductSearch {
	return &ProductSearch{client: client}
}

func (t *ProductSearch) Name() string   { return "search_catalog_products" }
func (t *ProductSearch) Module() string { return ModuleCatalog }

func (t *ProductSearch) Definition() llms.Tool {
	return definition(t.Name(),
		"Search catalog products by name, category, or keyword.",
		map[string]any{
			"name":     prop("string", "Product name to search for"),
			"category": prop("string", "Product category"),
			"keyword":  prop("string", "Free-text keyword for product search"),
			"limit":    prop("number", "Maximum number of results (default 10)"),
		}, nil)
}

func (t *ProductSearch) Execute(ctx context.Context, args map[string]any, token string) Result {
	query := map[string]string{
		"limit": strconv.Itoa(intArg(args, "limit", 10)),
	}
	for _, key := range []string{"name", "category", "keyword"} {
		if v := stringArg(args, key); v != "" {
			query[key] = v
		}
	}

	res := t.client.Get(ctx, "/api/products", query, token)
	if !res.OK() {
		return Result{Success: false, Message: fallbackMessage(res, "failed to fetch product data"), Status: res.Status}
	}
	return Result{Success: true, Data: res.Body, Message: "product data retrieved", Status: res.Status}
}
