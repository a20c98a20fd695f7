package chat

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cf-toolsuite/cf-kaizen/pkg/mcp"
)

func toolServer(t *testing.T, name string, tools ...mcp.Tool) *mcp.Client {
	t.Helper()
	server := mcp.NewServer(name, "1.0.0", func(call mcp.ToolCall) (mcp.ToolResult, error) {
		return mcp.TextResult("ok"), nil
	})
	for _, tool := range tools {
		server.RegisterTool(tool)
	}

	ts := httptest.NewServer(mcp.NewSSEServer(server).Mux())
	t.Cleanup(ts.Close)
	return mcp.NewClient(name, ts.URL)
}

func TestBuildRegistryAggregatesAcrossClients(t *testing.T) {
	butler := toolServer(t, "butler",
		mcp.Tool{Name: "GetFoo", Description: "Butler foo"},
		mcp.Tool{Name: "GetBar", Description: "Butler bar"},
	)
	hoover := toolServer(t, "hoover",
		mcp.Tool{Name: "GetBaz", Description: "Hoover baz"},
	)

	registry, err := BuildRegistry(context.Background(), []*mcp.Client{butler, hoover})
	require.NoError(t, err)
	require.Len(t, registry.Tools(), 3)

	descriptions := registry.Descriptions()
	assert.Equal(t, "Butler foo", descriptions["GetFoo"])
	assert.Equal(t, "Hoover baz", descriptions["GetBaz"])
}

func TestBuildRegistryDuplicateNamesFail(t *testing.T) {
	butler := toolServer(t, "butler", mcp.Tool{Name: "GetFoo"})
	hoover := toolServer(t, "hoover", mcp.Tool{Name: "GetFoo"})

	_, err := BuildRegistry(context.Background(), []*mcp.Client{butler, hoover})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tool names")
	assert.Contains(t, err.Error(), "GetFoo")
}

func TestBuildRegistryToleratesListingFailure(t *testing.T) {
	live := toolServer(t, "butler", mcp.Tool{Name: "GetFoo"})
	dead := mcp.NewClient("hoover", "http://127.0.0.1:1")

	registry, err := BuildRegistry(context.Background(), []*mcp.Client{live, dead})
	require.NoError(t, err)
	assert.Len(t, registry.Tools(), 1)
}

func TestRegistryFilter(t *testing.T) {
	client := toolServer(t, "butler",
		mcp.Tool{Name: "GetFoo"},
		mcp.Tool{Name: "GetBar"},
	)
	registry, err := BuildRegistry(context.Background(), []*mcp.Client{client})
	require.NoError(t, err)

	tests := []struct {
		name      string
		allowlist []string
		expected  []string
	}{
		{"empty allowlist returns everything", nil, []string{"GetFoo", "GetBar"}},
		{"subset", []string{"GetFoo"}, []string{"GetFoo"}},
		{"unknown names ignored", []string{"GetFoo", "GetQux"}, []string{"GetFoo"}},
		{"only unknown names filters to nothing", []string{"GetQux"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered := registry.Filter(tt.allowlist)
			var names []string
			for _, tool := range filtered {
				names = append(names, tool.Definition().Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}
