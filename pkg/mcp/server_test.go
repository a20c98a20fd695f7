package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer("test-server", "0.1.0", func(call ToolCall) (ToolResult, error) {
		switch call.Name {
		case "echo":
			return TextResult(fmt.Sprintf("echo: %v", call.Arguments["text"])), nil
		case "boom":
			return ToolResult{}, fmt.Errorf("handler exploded")
		default:
			return ErrorResult(fmt.Sprintf("unknown tool: %s", call.Name)), nil
		}
	})
	server.RegisterTool(Tool{
		Name:        "echo",
		Description: "Echoes back the given text",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
	})
	server.RegisterTool(Tool{Name: "boom", Description: "Always fails"})
	return server
}

func postMessage(t *testing.T, ts *httptest.Server, method string, params any) Response {
	t.Helper()
	request := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		request["params"] = params
	}
	payload, err := json.Marshal(request)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/message", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	return response
}

func TestHandleMessageInitialize(t *testing.T) {
	ts := httptest.NewServer(NewSSEServer(newTestServer(t)).Mux())
	defer ts.Close()

	response := postMessage(t, ts, "initialize", map[string]any{"protocolVersion": ProtocolVersion})
	require.Nil(t, response.Error)

	var result InitializeResult
	require.NoError(t, json.Unmarshal(response.Result, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "test-server", result.ServerInfo.Name)
	assert.Contains(t, result.Capabilities, "tools")
}

func TestHandleMessageListTools(t *testing.T) {
	ts := httptest.NewServer(NewSSEServer(newTestServer(t)).Mux())
	defer ts.Close()

	response := postMessage(t, ts, "tools/list", nil)
	require.Nil(t, response.Error)

	var result ListToolsResult
	require.NoError(t, json.Unmarshal(response.Result, &result))
	require.Len(t, result.Tools, 2)
	assert.Equal(t, "echo", result.Tools[0].Name)
	assert.Equal(t, "boom", result.Tools[1].Name)
}

func TestHandleMessageCallTool(t *testing.T) {
	ts := httptest.NewServer(NewSSEServer(newTestServer(t)).Mux())
	defer ts.Close()

	response := postMessage(t, ts, "tools/call", ToolCall{
		Name:      "echo",
		Arguments: map[string]any{"text": "hello"},
	})
	require.Nil(t, response.Error)

	var result ToolResult
	require.NoError(t, json.Unmarshal(response.Result, &result))
	require.Len(t, result.Content, 1)
	assert.False(t, result.IsError)
	assert.Equal(t, "echo: hello", result.Content[0].Text)
}

func TestHandleMessageCallToolHandlerError(t *testing.T) {
	ts := httptest.NewServer(NewSSEServer(newTestServer(t)).Mux())
	defer ts.Close()

	response := postMessage(t, ts, "tools/call", ToolCall{Name: "boom"})
	require.NotNil(t, response.Error)
	assert.Equal(t, CodeInternalError, response.Error.Code)
	assert.Contains(t, response.Error.Message, "handler exploded")
}

func TestHandleMessageUnknownMethod(t *testing.T) {
	ts := httptest.NewServer(NewSSEServer(newTestServer(t)).Mux())
	defer ts.Close()

	response := postMessage(t, ts, "nope/nothing", nil)
	require.NotNil(t, response.Error)
	assert.Equal(t, CodeMethodNotFound, response.Error.Code)
}

func TestHandleMessageRejectsGet(t *testing.T) {
	ts := httptest.NewServer(NewSSEServer(newTestServer(t)).Mux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/message")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
