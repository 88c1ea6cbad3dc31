package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CallRequest describes one downstream call through the API gateway.
type CallRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
	Token  string
}

// CallResult carries the downstream response. A transport or downstream error
// is recorded in Err/Message; the caller decides how to surface it.
type CallResult struct {
	Status  int
	Body    any
	Message string
	Err     error
}

// OK reports whether the downstream call succeeded with a 2xx status.
func (r *CallResult) OK() bool {
	return r.Err == nil && r.Status >= 200 && r.Status < 300
}

// ListQuery is the standard body for read endpoints following the gateway's
// POST-to-/get convention.
type ListQuery struct {
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	SortOrder string `json:"sort_order"`
	Search    string `json:"search,omitempty"`
}

// Client issues HTTP calls to the downstream API gateway with the caller's
// bearer token attached.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a gateway client with a bounded per-request timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Call performs the downstream request. It never returns a nil result.
func (c *Client) Call(ctx context.Context, req CallRequest) *CallResult {
	target, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return &CallResult{Err: err, Message: err.Error()}
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return &CallResult{Err: fmt.Errorf("encode request body: %w", err), Message: "invalid request body"}
		}
		body = bytes.NewReader(payload)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &CallResult{Err: fmt.Errorf("build request: %w", err), Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("gateway call failed", "method", method, "path", req.Path, "error", err)
		return &CallResult{Err: err, Message: fmt.Sprintf("gateway request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &CallResult{Status: resp.StatusCode, Err: err, Message: "failed to read gateway response"}
	}

	result := &CallResult{Status: resp.StatusCode}
	if len(raw) > 0 {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			result.Body = decoded
		} else {
			result.Body = string(raw)
		}
	}

	if !result.OK() {
		result.Message = downstreamMessage(result.Body, resp.StatusCode)
	}
	return result
}

// Get issues a plain GET with query parameters.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, token string) *CallResult {
	return c.Call(ctx, CallRequest{Method: http.MethodGet, Path: path, Query: query, Token: token})
}

// List calls a read endpoint using the POST-to-/get convention with a
// standard pagination body.
func (c *Client) List(ctx context.Context, path string, q ListQuery, token string) *CallResult {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
	if !strings.HasSuffix(path, "/get") {
		path = strings.TrimSuffix(path, "/") + "/get"
	}
	return c.Call(ctx, CallRequest{Method: http.MethodPost, Path: path, Body: q, Token: token})
}

func (c *Client) buildURL(path string, query map[string]string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("gateway base URL is not configured")
	}
	u, err := url.Parse(c.baseURL + normalizePath(path))
	if err != nil {
		return "", fmt.Errorf("invalid gateway path %q: %w", path, err)
	}
	if len(query) > 0 {
		values := u.Query()
		for k, v := range query {
			values.Set(k, v)
		}
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

// downstreamMessage pulls the downstream error message out of a decoded body
// when one is present, so the model sees the real cause.
func downstreamMessage(body any, status int) string {
	if m, ok := body.(map[string]any); ok {
		for _, key := range []string{"message", "error"} {
			if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("gateway returned status %d", status)
}
