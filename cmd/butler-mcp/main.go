package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/cf-toolsuite/cf-kaizen/cmd/butler-mcp/handlers"
	"github.com/cf-toolsuite/cf-kaizen/internal/butler"
	"github.com/cf-toolsuite/cf-kaizen/internal/cache"
	"github.com/cf-toolsuite/cf-kaizen/internal/config"
	"github.com/cf-toolsuite/cf-kaizen/internal/events"
	"github.com/cf-toolsuite/cf-kaizen/pkg/mcp"
)

const ServiceVersion = "v1.0.0"

func main() {
	config.LoadEnv("../../.env")

	butlerURL := os.Getenv("CF_BUTLER_URL")
	if butlerURL == "" {
		butlerURL = "http://localhost:8080"
	}

	store, err := cache.NewFromEnv()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize cache: %v", err))
	}

	publisher, err := events.NewPublisherFromEnv()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize event publisher: %v", err))
	}
	defer publisher.Close()

	client := butler.NewClient(butlerURL, 30*time.Second)
	handler := handlers.NewButlerHandler(client, store, publisher)

	server := mcp.NewServer("cf-butler-mcp", ServiceVersion, handler.HandleTool)
	for _, tool := range handler.ListTools() {
		server.RegisterTool(tool)
	}

	port := 8082
	if raw := os.Getenv("PORT"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			panic(fmt.Sprintf("Invalid PORT %q: %v", raw, err))
		}
		port = parsed
	}

	log.Printf("cf-butler MCP server %s proxying %s", ServiceVersion, butlerURL)
	if err := mcp.NewSSEServer(server).Start(port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
