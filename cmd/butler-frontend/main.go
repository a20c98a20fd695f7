package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cf-toolsuite/cf-kaizen/cmd/butler-frontend/auth"
	"github.com/cf-toolsuite/cf-kaizen/cmd/butler-frontend/handlers"
	"github.com/cf-toolsuite/cf-kaizen/internal/chat"
	"github.com/cf-toolsuite/cf-kaizen/internal/config"
	"github.com/cf-toolsuite/cf-kaizen/internal/llm"
	"github.com/cf-toolsuite/cf-kaizen/internal/storage"
	"github.com/cf-toolsuite/cf-kaizen/pkg/mcp"
)

const ServiceVersion = "v1.0.0"

const systemPrompt = "You are a Cloud Foundry reporting assistant. Use the available tools to answer questions about foundations, organizations, spaces, applications, service instances, users, and accounting. Prefer tool results over guesses; say so when the data does not cover the question."

func main() {
	config.LoadEnv("../../.env")

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		panic("OPENAI_API_KEY is required")
	}
	model := os.Getenv("CHAT_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	var llmOpts []llm.ClientOption
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(baseURL))
	}
	completer, err := llm.NewCompletionClient(apiKey, model, llmOpts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize completion client: %v", err))
	}

	connections, err := config.LoadConnections()
	if err != nil {
		panic(fmt.Sprintf("Failed to load MCP connections: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	manager := mcp.NewClientManager(connections)
	if err := manager.Connect(ctx); err != nil {
		cancel()
		panic(fmt.Sprintf("Failed to connect to MCP servers: %v", err))
	}

	registry, err := chat.BuildRegistry(ctx, manager.Clients())
	cancel()
	if err != nil {
		panic(fmt.Sprintf("Failed to build tool registry: %v", err))
	}

	opts := []chat.ServiceOption{chat.WithSystemPrompt(systemPrompt)}
	if path := os.Getenv("GREETING_FILE_PATH"); path != "" {
		greeting, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Greeting file %s unreadable, using default: %v", path, err)
		} else {
			opts = append(opts, chat.WithGreeting(strings.TrimSpace(string(greeting))))
		}
	}
	if os.Getenv("MODERATION_DISABLED") != "true" {
		moderationURL := os.Getenv("MODERATION_URL")
		if moderationURL == "" {
			moderationURL = chat.DefaultModerationURL
		}
		opts = append(opts, chat.WithModerationGate(chat.NewProfanityFilter(moderationURL)))
	}
	service := chat.NewService(completer, registry, model, opts...)

	store, err := storage.NewConversationStoreFromEnv()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize conversation store: %v", err))
	}
	defer store.Close()

	chatHandler := handlers.NewChatHandler(service, store)
	jwtAuth := auth.NewJWTAuthFromEnv()
	if jwtAuth == nil {
		fmt.Println("Warning: CHAT_API_JWT_SECRET not set, chat API is unauthenticated")
	}

	api := http.NewServeMux()
	api.HandleFunc("/api/butler/stream/chat", chatHandler.HandleStreamChat)
	api.HandleFunc("/api/butler/greeting", chatHandler.HandleGreeting)
	api.HandleFunc("/api/butler/tools", chatHandler.HandleTools)
	api.HandleFunc("/api/conversations/{id}", chatHandler.HandleConversation)

	mux := http.NewServeMux()
	mux.Handle("/api/", jwtAuth.Middleware(api))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("butler-frontend %s serving model %s on :%s", ServiceVersion, model, port)
	if err := http.ListenAndServe(":"+port, corsMiddleware(mux)); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
