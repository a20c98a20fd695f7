package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConnectionsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "connections.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConnectionsFromYAML(t *testing.T) {
	path := writeConnectionsFile(t, `
connections:
  - name: cf-butler
    url: http://localhost:8082
  - name: cf-hoover
    url: http://localhost:8083
`)
	t.Setenv("MCP_CONNECTIONS_FILE", path)

	connections, err := LoadConnections()
	require.NoError(t, err)
	assert.Equal(t, Connections{
		"cf-butler": "http://localhost:8082",
		"cf-hoover": "http://localhost:8083",
	}, connections)
}

func TestLoadConnectionsRejectsDuplicates(t *testing.T) {
	path := writeConnectionsFile(t, `
connections:
  - name: cf-butler
    url: http://one:8082
  - name: cf-butler
    url: http://two:8082
`)
	t.Setenv("MCP_CONNECTIONS_FILE", path)

	_, err := LoadConnections()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate connection cf-butler")
}

func TestLoadConnectionsRejectsMissingURL(t *testing.T) {
	path := writeConnectionsFile(t, `
connections:
  - name: cf-butler
`)
	t.Setenv("MCP_CONNECTIONS_FILE", path)

	_, err := LoadConnections()
	assert.Error(t, err)
}

func TestLoadConnectionsFromEnv(t *testing.T) {
	t.Setenv("MCP_CONNECTIONS_FILE", "")
	t.Setenv("BUTLER_MCP_URL", "http://localhost:8082")
	t.Setenv("HOOVER_MCP_URL", "")

	connections, err := LoadConnections()
	require.NoError(t, err)
	assert.Equal(t, Connections{"cf-butler": "http://localhost:8082"}, connections)
}

func TestLoadConnectionsRequiresAtLeastOne(t *testing.T) {
	t.Setenv("MCP_CONNECTIONS_FILE", "")
	t.Setenv("BUTLER_MCP_URL", "")
	t.Setenv("HOOVER_MCP_URL", "")

	_, err := LoadConnections()
	assert.Error(t, err)
}
