package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Client talks to one MCP server over its /message endpoint. A single
// Client is shared across concurrent turns, so request IDs come from an
// atomic counter.
type Client struct {
	name       string
	messageURL string
	httpClient *http.Client
	timeout    time.Duration
	nextID     atomic.Int64
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestTimeout bounds each individual tool call.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a client for the server at baseURL. The message
// endpoint is derived from the base URL.
func NewClient(name, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		name:       name,
		messageURL: strings.TrimRight(baseURL, "/") + "/message",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		timeout:    60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the connection name this client was configured under.
func (c *Client) Name() string {
	return c.name
}

type rpcOutcome struct {
	result json.RawMessage
	err    error
}

// rpc issues one JSON-RPC request in a goroutine and waits on the result,
// the caller's context, or the per-request timeout, whichever comes first.
func (c *Client) rpc(ctx context.Context, method string, params any) (json.RawMessage, error) {
	request := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
	}
	if params != nil {
		request["params"] = params
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	outcome := make(chan rpcOutcome, 1)
	go func() {
		outcome <- c.post(ctx, payload)
	}()

	select {
	case out := <-outcome:
		return out.result, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s %s: %w", c.name, method, ctx.Err())
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("%s %s: timed out after %s", c.name, method, c.timeout)
	}
}

func (c *Client) post(ctx context.Context, payload []byte) rpcOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messageURL, bytes.NewReader(payload))
	if err != nil {
		return rpcOutcome{err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rpcOutcome{err: fmt.Errorf("call %s: %w", c.messageURL, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return rpcOutcome{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return rpcOutcome{err: fmt.Errorf("%s returned %d: %s", c.messageURL, resp.StatusCode, string(body))}
	}

	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return rpcOutcome{err: fmt.Errorf("decode response: %w", err)}
	}
	if response.Error != nil {
		return rpcOutcome{err: fmt.Errorf("%s: %s (code %d)", c.name, response.Error.Message, response.Error.Code)}
	}
	return rpcOutcome{result: response.Result}
}

// Initialize performs the MCP initialize handshake.
func (c *Client) Initialize(ctx context.Context) (InitializeResult, error) {
	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "cf-kaizen",
			"version": "1.0.0",
		},
	}

	raw, err := c.rpc(ctx, "initialize", params)
	if err != nil {
		return InitializeResult{}, err
	}

	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return InitializeResult{}, fmt.Errorf("decode initialize result: %w", err)
	}
	return result, nil
}

// ListTools fetches the server's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	raw, err := c.rpc(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var result ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a named tool with the given arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (ToolResult, error) {
	raw, err := c.rpc(ctx, "tools/call", ToolCall{Name: name, Arguments: arguments})
	if err != nil {
		return ToolResult{}, err
	}

	var result ToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ToolResult{}, fmt.Errorf("decode tools/call result: %w", err)
	}
	return result, nil
}
