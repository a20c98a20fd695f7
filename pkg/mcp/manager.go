package mcp

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// ClientManager holds the MCP connections that survived initialization.
// Servers that fail to initialize are logged and skipped so that one
// dead backend does not take the whole surface down.
type ClientManager struct {
	connections map[string]string
	clients     map[string]*Client
	opts        []ClientOption
}

// NewClientManager creates a manager for the given name to base-URL map.
func NewClientManager(connections map[string]string, opts ...ClientOption) *ClientManager {
	return &ClientManager{
		connections: connections,
		clients:     make(map[string]*Client),
		opts:        opts,
	}
}

// Connect initializes every configured connection. It returns an error
// only when no connection at all could be established.
func (m *ClientManager) Connect(ctx context.Context) error {
	names := make([]string, 0, len(m.connections))
	for name := range m.connections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		client := NewClient(name, m.connections[name], m.opts...)
		result, err := client.Initialize(ctx)
		if err != nil {
			log.Printf("mcp: connection %q unavailable: %v", name, err)
			continue
		}
		log.Printf("mcp: connected to %q (%s %s)", name, result.ServerInfo.Name, result.ServerInfo.Version)
		m.clients[name] = client
	}

	if len(m.connections) > 0 && len(m.clients) == 0 {
		return fmt.Errorf("no MCP connections available")
	}
	return nil
}

// Clients returns the live clients in stable name order.
func (m *ClientManager) Clients() []*Client {
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	clients := make([]*Client, 0, len(names))
	for _, name := range names {
		clients = append(clients, m.clients[name])
	}
	return clients
}

// Client returns the named client, or nil when that connection is down.
func (m *ClientManager) Client(name string) *Client {
	return m.clients[name]
}
