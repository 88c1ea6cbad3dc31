package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/msi-gate/assistant/internal/gateway"
	"github.com/tmc/langchaingo/llms"
)

// GatewayCall is the generic tool that proxies an arbitrary allowed path
// through the API gateway. Policy checks run before any request is built, so
// a rejected call never reaches the network.
type GatewayCall struct {
	client *gateway.Client
	policy *gateway.Policy
}

// NewGatewayCall creates the call_gateway_endpoint tool.
func NewGatewayCall(client *gateway.Client, policy *gateway.Policy) *GatewayCall {
	return &GatewayCall{client: client, policy: policy}
}

func (t *GatewayCall) Name() string   { return "call_gateway_endpoint" }
func (t *GatewayCall) Module() string { return ModuleGateway }

func (t *GatewayCall) Definition() llms.Tool {
	return definition(t.Name(),
		"Call an API gateway endpoint directly. Only paths on the gateway allow-list are reachable. Prefer read endpoints (POST to a /get path with page, limit, sort_order, search) and keep limits small.",
		map[string]any{
			"path":   prop("string", "Endpoint path, e.g. /api/employees/get"),
			"method": prop("string", "HTTP method (default GET)"),
			"query":  prop("object", "Query string parameters"),
			"body":   prop("object", "JSON request body for POST/PUT"),
		}, []string{"path"})
}

func (t *GatewayCall) Execute(ctx context.Context, args map[string]any, token string) Result {
	if token == "" {
		return Fail("a bearer token is required to call the gateway")
	}

	path := stringArg(args, "path")
	if path == "" {
		return Fail("path argument is required")
	}
	method := stringArg(args, "method")
	if method == "" {
		method = "GET"
	}

	if err := t.policy.Authorize(method, path); err != nil {
		switch {
		case errors.Is(err, gateway.ErrPathNotAllowed):
			return Fail("path %s is not allowed through the gateway", path)
		case errors.Is(err, gateway.ErrWriteNotAllowed):
			return Fail("the assistant is running in read-only mode, %s %s would modify data", method, path)
		default:
			return Fail("call rejected: %v", err)
		}
	}

	// Models emit query values as JSON numbers and booleans as often as
	// strings, so render any scalar. Nested objects have no query encoding.
	query := map[string]string{}
	for k, v := range mapArg(args, "query") {
		switch v.(type) {
		case map[string]any, []any, nil:
		default:
			query[k] = fmt.Sprint(v)
		}
	}

	res := t.client.Call(ctx, gateway.CallRequest{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   mapArg(args, "body"),
		Token:  token,
	})
	if !res.OK() {
		return Result{Success: false, Message: fallbackMessage(res, "gateway call failed"), Status: res.Status}
	}
	return Result{Success: true, Data: res.Body, Message: "gateway call succeeded", Status: res.Status}
}
