package chat

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/cf-toolsuite/cf-kaizen/internal/llm"
	"github.com/cf-toolsuite/cf-kaizen/pkg/mcp"
)

// Registry is the flattened tool catalog across every connected MCP
// server. It is immutable once built and safe for concurrent reads.
type Registry struct {
	tools        []llm.Tool
	descriptions map[string]string
}

// BuildRegistry lists tools from every client and flattens them into one
// catalog. A client that fails to list contributes nothing and is
// logged. Duplicate tool names across clients are a configuration error
// and fail the whole build.
func BuildRegistry(ctx context.Context, clients []*mcp.Client) (*Registry, error) {
	registry := &Registry{descriptions: make(map[string]string)}

	owners := make(map[string][]string)
	for _, client := range clients {
		tools, err := client.ListTools(ctx)
		if err != nil {
			log.Printf("registry: listing tools on %q failed, skipping: %v", client.Name(), err)
			continue
		}
		for _, tool := range tools {
			owners[tool.Name] = append(owners[tool.Name], client.Name())
			registry.tools = append(registry.tools, NewToolCallback(client, tool))
			registry.descriptions[tool.Name] = tool.Description
		}
	}

	var duplicates []string
	for name, who := range owners {
		if len(who) > 1 {
			duplicates = append(duplicates, fmt.Sprintf("%s (%s)", name, strings.Join(who, ", ")))
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return nil, fmt.Errorf("duplicate tool names: %s", strings.Join(duplicates, "; "))
	}

	return registry, nil
}

// Tools returns the full capability set.
func (r *Registry) Tools() []llm.Tool {
	return r.tools
}

// Filter returns the capabilities named in the allowlist. An empty
// allowlist returns everything; names absent from the registry are
// ignored.
func (r *Registry) Filter(allowlist []string) []llm.Tool {
	if len(allowlist) == 0 {
		return r.tools
	}

	allowed := make(map[string]bool, len(allowlist))
	for _, name := range allowlist {
		allowed[name] = true
	}

	var filtered []llm.Tool
	for _, tool := range r.tools {
		if allowed[tool.Definition().Name] {
			filtered = append(filtered, tool)
		}
	}
	return filtered
}

// Descriptions returns the name to description mapping for the whole
// catalog, for populating tool-selection UIs.
func (r *Registry) Descriptions() map[string]string {
	out := make(map[string]string, len(r.descriptions))
	for name, description := range r.descriptions {
		out[name] = description
	}
	return out
}
