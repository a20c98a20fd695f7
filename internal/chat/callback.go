package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cf-toolsuite/cf-kaizen/internal/llm"
	"github.com/cf-toolsuite/cf-kaizen/pkg/mcp"
)

// ToolCallback bridges one remote MCP tool into the synchronous calling
// convention the completion loop expects.
type ToolCallback struct {
	client *mcp.Client
	tool   mcp.Tool
}

// NewToolCallback wraps the named tool on the given connection.
func NewToolCallback(client *mcp.Client, tool mcp.Tool) *ToolCallback {
	return &ToolCallback{client: client, tool: tool}
}

// Definition exposes the remote descriptor unchanged.
func (c *ToolCallback) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        c.tool.Name,
		Description: c.tool.Description,
		InputSchema: c.tool.InputSchema,
	}
}

// Call invokes the remote tool and returns its payload in textual form.
// The call blocks for exactly one round trip; caller cancellation is
// surfaced as a cancellation failure rather than a remote one.
func (c *ToolCallback) Call(ctx context.Context, arguments json.RawMessage) (string, error) {
	args := map[string]any{}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("tool %s: invalid arguments: %w", c.tool.Name, err)
		}
	}

	result, err := c.client.CallTool(ctx, c.tool.Name, args)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("tool %s: cancelled while awaiting result: %w", c.tool.Name, err)
		}
		return "", fmt.Errorf("tool %s: %w", c.tool.Name, err)
	}

	if result.IsError {
		return "", fmt.Errorf("tool %s: %s", c.tool.Name, flattenContent(result.Content))
	}
	return flattenContent(result.Content), nil
}

// flattenContent renders result content as text. A single text block
// passes through unchanged; anything else is serialized as JSON.
func flattenContent(blocks []mcp.ContentBlock) string {
	if len(blocks) == 1 && blocks[0].Type == "text" {
		return blocks[0].Text
	}

	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Type == "text" {
			parts = append(parts, block.Text)
			continue
		}
		data, err := json.Marshal(block)
		if err != nil {
			continue
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n")
}
