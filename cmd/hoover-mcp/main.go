package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/cf-toolsuite/cf-kaizen/cmd/hoover-mcp/handlers"
	"github.com/cf-toolsuite/cf-kaizen/internal/cache"
	"github.com/cf-toolsuite/cf-kaizen/internal/config"
	"github.com/cf-toolsuite/cf-kaizen/internal/events"
	"github.com/cf-toolsuite/cf-kaizen/internal/hoover"
	"github.com/cf-toolsuite/cf-kaizen/pkg/mcp"
)

const ServiceVersion = "v1.0.0"

func main() {
	config.LoadEnv("../../.env")

	hooverURL := os.Getenv("CF_HOOVER_URL")
	if hooverURL == "" {
		hooverURL = "http://localhost:8081"
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

	client := hoover.NewClient(hooverURL, 30*time.Second)
	handler := handlers.NewHooverHandler(client, store, publisher)

	server := mcp.NewServer("cf-hoover-mcp", ServiceVersion, handler.HandleTool)
	for _, tool := range handler.ListTools() {
		server.RegisterTool(tool)
	}

	port := 8083
	if raw := os.Getenv("PORT"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			panic(fmt.Sprintf("Invalid PORT %q: %v", raw, err))
		}
		port = parsed
	}

	log.Printf("cf-hoover MCP server %s proxying %s", ServiceVersion, hooverURL)
	if err := mcp.NewSSEServer(server).Start(port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
