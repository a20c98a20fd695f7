package chat

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cf-toolsuite/cf-kaizen/internal/llm"
	"github.com/cf-toolsuite/cf-kaizen/pkg/mcp"
)

type fakeCompleter struct {
	content   []string
	usage     llm.Usage
	err       error
	called    bool
	lastTools []string
}

func (f *fakeCompleter) StreamCompletion(ctx context.Context, req llm.CompletionRequest, onContent func(string)) (llm.Usage, error) {
	f.called = true
	f.lastTools = nil
	for _, tool := range req.Tools {
		f.lastTools = append(f.lastTools, tool.Definition().Name)
	}
	for _, delta := range f.content {
		onContent(delta)
	}
	return f.usage, f.err
}

type fixedGate struct {
	flagged bool
	called  bool
}

func (g *fixedGate) Check(ctx context.Context, text string) bool {
	g.called = true
	return g.flagged
}

func testRegistry(t *testing.T, names ...string) *Registry {
	t.Helper()
	var tools []mcp.Tool
	for _, name := range names {
		tools = append(tools, mcp.Tool{Name: name})
	}
	server := mcp.NewServer("test", "1.0.0", func(call mcp.ToolCall) (mcp.ToolResult, error) {
		return mcp.TextResult("ok"), nil
	})
	for _, tool := range tools {
		server.RegisterTool(tool)
	}
	ts := httptest.NewServer(mcp.NewSSEServer(server).Mux())
	t.Cleanup(ts.Close)

	registry, err := BuildRegistry(context.Background(), []*mcp.Client{mcp.NewClient("test", ts.URL)})
	require.NoError(t, err)
	return registry
}

func collect(t *testing.T, service *Service, inquiry Inquiry) []Chunk {
	t.Helper()
	var chunks []Chunk
	err := service.Chat(context.Background(), inquiry, nil, func(chunk Chunk) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	return chunks
}

func TestChatContentPrecedesSingleMetadataChunk(t *testing.T) {
	completer := &fakeCompleter{
		content: []string{"There ", "are ", "3 ", "orgs."},
		usage:   llm.Usage{PromptTokens: 30, CompletionTokens: 12, TotalTokens: 42},
	}
	service := NewService(completer, testRegistry(t), "gpt-4o")

	chunks := collect(t, service, Inquiry{Question: "How many orgs?"})
	require.Len(t, chunks, 5)

	for i := 0; i < 4; i++ {
		assert.False(t, chunks[i].IsMetadata())
	}
	last := chunks[4]
	require.True(t, last.IsMetadata())
	assert.Equal(t, "gpt-4o", last.Metadata.Model)
	assert.Equal(t, int64(42), last.Metadata.TotalTokens)
	assert.Equal(t, int64(30), last.Metadata.PromptTokens)
	assert.Equal(t, int64(12), last.Metadata.CompletionTokens)
	assert.NotEmpty(t, last.Metadata.ResponseTime)
}

func TestChatAllowlistRestrictsTools(t *testing.T) {
	completer := &fakeCompleter{content: []string{"ok"}}
	service := NewService(completer, testRegistry(t, "GetFoo", "GetBar"), "gpt-4o")

	collect(t, service, Inquiry{Question: "q", Tools: []string{"GetFoo"}})
	assert.Equal(t, []string{"GetFoo"}, completer.lastTools)

	collect(t, service, Inquiry{Question: "q"})
	assert.ElementsMatch(t, []string{"GetFoo", "GetBar"}, completer.lastTools)
}

func TestChatRequiresQuestion(t *testing.T) {
	service := NewService(&fakeCompleter{}, testRegistry(t), "gpt-4o")
	err := service.Chat(context.Background(), Inquiry{}, nil, func(Chunk) error { return nil })
	require.Error(t, err)
}

func TestChatGateRejection(t *testing.T) {
	completer := &fakeCompleter{content: []string{"should not appear"}}
	gate := &fixedGate{flagged: true}
	service := NewService(completer, testRegistry(t), "gpt-4o",
		WithModerationGate(gate),
		WithRefusalMessage("I won't answer that."),
	)

	chunks := collect(t, service, Inquiry{Question: "flagged text"})
	require.Len(t, chunks, 1)
	assert.Equal(t, "I won't answer that.", chunks[0].Content)
	assert.False(t, chunks[0].IsMetadata())
	assert.False(t, completer.called)
}

func TestChatGateClearProceeds(t *testing.T) {
	completer := &fakeCompleter{content: []string{"answer"}}
	gate := &fixedGate{flagged: false}
	service := NewService(completer, testRegistry(t), "gpt-4o", WithModerationGate(gate))

	chunks := collect(t, service, Inquiry{Question: "innocuous question"})
	assert.True(t, gate.called)
	assert.True(t, completer.called)
	require.Len(t, chunks, 2)
	assert.True(t, chunks[1].IsMetadata())
}

func TestChatFailOpenGateProceeds(t *testing.T) {
	completer := &fakeCompleter{content: []string{"answer"}}
	// Unreachable moderation backend behaves as an open gate.
	service := NewService(completer, testRegistry(t), "gpt-4o",
		WithModerationGate(NewProfanityFilter("http://127.0.0.1:1")),
	)

	chunks := collect(t, service, Inquiry{Question: "innocuous question"})
	assert.True(t, completer.called)
	require.Len(t, chunks, 2)
}

func TestChatErrorBeforeContentSurfaces(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("model unavailable")}
	service := NewService(completer, testRegistry(t), "gpt-4o")

	err := service.Chat(context.Background(), Inquiry{Question: "q"}, nil, func(Chunk) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestChatErrorAfterContentEndsWithoutMetadata(t *testing.T) {
	completer := &fakeCompleter{
		content: []string{"partial "},
		err:     fmt.Errorf("stream broke"),
	}
	service := NewService(completer, testRegistry(t), "gpt-4o")

	var chunks []Chunk
	err := service.Chat(context.Background(), Inquiry{Question: "q"}, nil, func(chunk Chunk) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "partial ", chunks[0].Content)
}

func TestChatEmitFailureStopsTurn(t *testing.T) {
	completer := &fakeCompleter{content: []string{"a", "b", "c"}}
	service := NewService(completer, testRegistry(t), "gpt-4o")

	count := 0
	err := service.Chat(context.Background(), Inquiry{Question: "q"}, nil, func(chunk Chunk) error {
		count++
		if count == 2 {
			return fmt.Errorf("consumer gone")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consumer gone")
}

func TestMetadataFrame(t *testing.T) {
	metadata := &Metadata{
		Model:            "gpt-4o",
		ResponseTime:     "1m15s",
		TokensPerSecond:  3.13,
		PromptTokens:     30,
		CompletionTokens: 12,
		TotalTokens:      42,
	}

	frame, ok := metadata.Frame()
	require.True(t, ok)
	assert.JSONEq(t, `{
		"content": null,
		"isMetadata": true,
		"metadata": {
			"model": "gpt-4o",
			"responseTime": "1m15s",
			"tokensPerSecond": 3.13,
			"promptTokens": 30,
			"completionTokens": 12,
			"totalTokens": 42
		}
	}`, string(frame))
}
