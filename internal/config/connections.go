package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Connections maps MCP connection names to server base URLs, e.g.
// "cf-butler" -> "http://localhost:8082".
type Connections map[string]string

type connectionsFile struct {
	Connections []struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	} `yaml:"connections"`
}

// LoadConnections reads MCP connections from a YAML file when
// MCP_CONNECTIONS_FILE is set, otherwise from BUTLER_MCP_URL and
// HOOVER_MCP_URL. Connections with no URL configured are omitted.
func LoadConnections() (Connections, error) {
	if path := os.Getenv("MCP_CONNECTIONS_FILE"); path != "" {
		return loadConnectionsFile(path)
	}

	connections := Connections{}
	if url := os.Getenv("BUTLER_MCP_URL"); url != "" {
		connections["cf-butler"] = url
	}
	if url := os.Getenv("HOOVER_MCP_URL"); url != "" {
		connections["cf-hoover"] = url
	}
	if len(connections) == 0 {
		return nil, fmt.Errorf("no MCP connections configured: set MCP_CONNECTIONS_FILE, BUTLER_MCP_URL, or HOOVER_MCP_URL")
	}
	return connections, nil
}

func loadConnectionsFile(path string) (Connections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading connections file %s: %w", path, err)
	}

	var parsed connectionsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing connections file %s: %w", path, err)
	}

	connections := Connections{}
	for _, c := range parsed.Connections {
		name := strings.TrimSpace(c.Name)
		url := strings.TrimSpace(c.URL)
		if name == "" || url == "" {
			return nil, fmt.Errorf("connections file %s: every connection needs a name and a url", path)
		}
		if _, exists := connections[name]; exists {
			return nil, fmt.Errorf("connections file %s: duplicate connection %s", path, name)
		}
		connections[name] = url
	}
	if len(connections) == 0 {
		return nil, fmt.Errorf("connections file %s lists no connections", path)
	}
	return connections, nil
}
