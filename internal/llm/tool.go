package llm

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Tool is a callable the model may invoke mid-completion. Call returns
// the tool output serialized for the model; a non-nil error is reported
// back to the model as the tool result rather than aborting the stream.
type Tool interface {
	Definition() ToolDefinition
	Call(ctx context.Context, arguments json.RawMessage) (string, error)
}

// Usage is the token accounting for one completion exchange.
type Usage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
}

// Merge folds another usage report into u, taking the elementwise
// maximum. Backends that report cumulative totals per stream would be
// double counted by summing.
func (u *Usage) Merge(other Usage) {
	if other.PromptTokens > u.PromptTokens {
		u.PromptTokens = other.PromptTokens
	}
	if other.CompletionTokens > u.CompletionTokens {
		u.CompletionTokens = other.CompletionTokens
	}
	if other.TotalTokens > u.TotalTokens {
		u.TotalTokens = other.TotalTokens
	}
}
