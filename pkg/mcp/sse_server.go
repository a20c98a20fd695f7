package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SSEServer exposes an MCP server over HTTP: an /sse endpoint announcing
// the message endpoint plus a /message endpoint speaking JSON-RPC 2.0.
type SSEServer struct {
	server *Server
}

// NewSSEServer creates an SSE-fronted MCP server.
func NewSSEServer(server *Server) *SSEServer {
	return &SSEServer{server: server}
}

// Mux returns an http.ServeMux with the MCP endpoints and a health probe
// mounted, wrapped in permissive CORS.
func (s *SSEServer) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", s.HandleSSE)
	mux.HandleFunc("/message", s.HandleMessage)
	mux.HandleFunc("/health", s.handleHealth)
	return corsMiddleware(mux)
}

// Start serves the MCP endpoints on the given port.
func (s *SSEServer) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("MCP SSE server (%s) listening on %s\n", s.server.info.Name, addr)
	return http.ListenAndServe(addr, s.Mux())
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *SSEServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleSSE announces the message endpoint and then holds the connection
// open until the client goes away.
func (s *SSEServer) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: endpoint\ndata: /message\n\n")
	flusher.Flush()

	<-r.Context().Done()
}

// HandleMessage services one JSON-RPC request.
func (s *SSEServer) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var request Request
	if err := json.Unmarshal(body, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	response := Response{JSONRPC: "2.0", ID: request.ID}

	switch request.Method {
	case "initialize":
		response.Result = marshalResult(s.server.Initialize())
	case "tools/list":
		response.Result = marshalResult(ListToolsResult{Tools: s.server.Tools()})
	case "tools/call":
		var call ToolCall
		if err := json.Unmarshal(request.Params, &call); err != nil {
			response.Error = &ResponseError{Code: CodeInvalidParams, Message: "Invalid params"}
			break
		}
		result, err := s.server.Call(call)
		if err != nil {
			response.Error = &ResponseError{Code: CodeInternalError, Message: err.Error()}
			break
		}
		response.Result = marshalResult(result)
	default:
		response.Error = &ResponseError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", request.Method),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func marshalResult(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Result types in this package are plain structs and maps; a
		// marshal failure here is a programming error.
		panic(err)
	}
	return data
}
