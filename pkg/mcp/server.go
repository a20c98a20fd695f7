package mcp

import "fmt"

// ToolHandler executes one tool call on behalf of the server.
type ToolHandler func(call ToolCall) (ToolResult, error)

// Server holds the tool definitions one MCP endpoint exposes and the
// handler that services calls against them.
type Server struct {
	info    Implementation
	tools   []Tool
	handler ToolHandler
}

// NewServer creates an MCP server identified by name/version.
func NewServer(name, version string, handler ToolHandler) *Server {
	return &Server{
		info:    Implementation{Name: name, Version: version},
		handler: handler,
	}
}

// RegisterTool adds a tool definition. Registration order is preserved in
// tools/list responses.
func (s *Server) RegisterTool(tool Tool) {
	s.tools = append(s.tools, tool)
}

// Tools returns the registered tool definitions.
func (s *Server) Tools() []Tool {
	return s.tools
}

// Initialize answers the MCP handshake.
func (s *Server) Initialize() InitializeResult {
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
		ServerInfo: s.info,
	}
}

// Call dispatches one tool invocation to the configured handler.
func (s *Server) Call(call ToolCall) (ToolResult, error) {
	if s.handler == nil {
		return ToolResult{}, fmt.Errorf("no tool handler configured")
	}
	return s.handler(call)
}
