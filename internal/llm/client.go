package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// maxToolRounds bounds the tool invocation loop for one completion.
const maxToolRounds = 8

// ChatCompletionService is the streaming surface of the OpenAI client.
type ChatCompletionService interface {
	NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// Message is one prior turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one user question with its surrounding context.
type CompletionRequest struct {
	SystemPrompt string
	History      []Message
	Question     string
	Tools        []Tool
}

// CompletionClient drives streaming chat completions, running the tool
// invocation loop until the model produces a final answer.
type CompletionClient struct {
	service ChatCompletionService
	model   string
}

// ClientOption customizes a CompletionClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL string
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) { c.baseURL = url }
}

// NewCompletionClient creates a client against the OpenAI API.
func NewCompletionClient(apiKey, model string, opts ...ClientOption) (*CompletionClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	cfg := clientConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.baseURL))
	}

	client := openai.NewClient(requestOpts...)
	return &CompletionClient{service: &client.Chat.Completions, model: model}, nil
}

// NewCompletionClientWithService creates a client over a caller-supplied
// completion service.
func NewCompletionClientWithService(service ChatCompletionService, model string) *CompletionClient {
	return &CompletionClient{service: service, model: model}
}

// StreamCompletion streams the answer to req, invoking onContent for each
// content delta in arrival order. Tool calls requested by the model are
// executed and their results fed back until the model finishes. The
// returned usage folds together every usage report seen on the way.
func (c *CompletionClient) StreamCompletion(ctx context.Context, req CompletionRequest, onContent func(string)) (Usage, error) {
	if req.Question == "" {
		return Usage{}, fmt.Errorf("question is required")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.History {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Question))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if len(req.Tools) > 0 {
		params.Tools = transformTools(req.Tools)
	}

	var usage Usage
	for round := 0; round <= maxToolRounds; round++ {
		finishReason, message, err := c.streamOnce(ctx, &params, &usage, onContent)
		if err != nil {
			return usage, err
		}

		if finishReason != "tool_calls" {
			return usage, nil
		}

		params.Messages = append(params.Messages, message.ToParam())
		for _, call := range message.ToolCalls {
			result := invokeTool(ctx, req.Tools, call)
			params.Messages = append(params.Messages, openai.ToolMessage(result, call.ID))
		}
	}

	return usage, fmt.Errorf("tool invocation loop exceeded %d rounds", maxToolRounds)
}

// streamOnce consumes a single completion stream, forwarding content
// deltas and folding in any usage report.
func (c *CompletionClient) streamOnce(ctx context.Context, params *openai.ChatCompletionNewParams, usage *Usage, onContent func(string)) (string, openai.ChatCompletionMessage, error) {
	stream := c.service.NewStreaming(ctx, *params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				onContent(delta)
			}
		}
		if chunk.Usage.TotalTokens > 0 {
			usage.Merge(Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			})
		}
	}
	if err := stream.Err(); err != nil {
		return "", openai.ChatCompletionMessage{}, fmt.Errorf("completion stream: %w", err)
	}
	if len(acc.Choices) == 0 {
		return "", openai.ChatCompletionMessage{}, fmt.Errorf("completion stream ended without a choice")
	}

	return acc.Choices[0].FinishReason, acc.Choices[0].Message, nil
}

// invokeTool runs one requested tool call. Failures become tool results
// so the model can recover instead of the whole exchange aborting.
func invokeTool(ctx context.Context, tools []Tool, call openai.ChatCompletionMessageToolCall) string {
	var tool Tool
	for _, t := range tools {
		if t.Definition().Name == call.Function.Name {
			tool = t
			break
		}
	}
	if tool == nil {
		return errorPayload(fmt.Sprintf("unknown tool: %s", call.Function.Name))
	}

	result, err := tool.Call(ctx, json.RawMessage(call.Function.Arguments))
	if err != nil {
		return errorPayload(err.Error())
	}
	return result
}

func errorPayload(message string) string {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return `{"error":"tool invocation failed"}`
	}
	return string(payload)
}

func transformTools(tools []Tool) []openai.ChatCompletionToolParam {
	params := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		def := t.Definition()
		params = append(params, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(def.InputSchema),
			},
		})
	}
	return params
}
