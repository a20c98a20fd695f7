package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cf-toolsuite/cf-kaizen/internal/cache"
	"github.com/cf-toolsuite/cf-kaizen/internal/hoover"
	"github.com/cf-toolsuite/cf-kaizen/pkg/mcp"
)

func newTestHandler(t *testing.T, backend http.Handler) *HooverHandler {
	t.Helper()
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)
	return NewHooverHandler(hoover.NewClient(server.URL, 5*time.Second), cache.NewMemoryCache(), nil)
}

func textOf(t *testing.T, result mcp.ToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	return result.Content[0].Text
}

func TestListToolsHaveNamesAndSchemas(t *testing.T) {
	h := NewHooverHandler(hoover.NewClient("http://localhost:1", time.Second), cache.NewMemoryCache(), nil)

	tools := h.ListTools()
	require.NotEmpty(t, tools)

	seen := map[string]bool{}
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.InputSchema["type"])
		assert.False(t, seen[tool.Name], "duplicate tool %s", tool.Name)
		seen[tool.Name] = true
	}

	assert.True(t, seen["SnapshotGetDemographicsAcrossFoundations"])
	assert.True(t, seen["AccountingAggregateApplicationUsageReport"])
	assert.True(t, seen["SnapshotGetPageableFilteredSpaceUsers"])
}

func TestCollectionTimestampsTool(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/collect", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"staging":"2026-08-30T01:00:00Z","production":"2026-08-30T02:00:00Z"}`)
	})
	h := newTestHandler(t, mux)

	result, err := h.HandleTool(mcp.ToolCall{Name: "SnapshotFetchCollectionTimestampsForEachRegisteredFoundation"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), "production")
}

func TestAggregateUsageReportIsCached(t *testing.T) {
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/accounting/applications", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"report-time":"2026-08","monthly-reports":[]}`)
	})
	h := newTestHandler(t, mux)

	for i := 0; i < 3; i++ {
		result, err := h.HandleTool(mcp.ToolCall{Name: "AccountingAggregateApplicationUsageReport"})
		require.NoError(t, err)
		assert.False(t, result.IsError)
	}

	assert.Equal(t, int64(1), hits.Load())
}

func TestSpaceUsersRequiresAllCoordinates(t *testing.T) {
	h := newTestHandler(t, http.NewServeMux())

	result, err := h.HandleTool(mcp.ToolCall{
		Name:      "SnapshotForAFoundationOrganizationAndSpaceListAllUsersBySpaceRoles",
		Arguments: map[string]any{"foundation": "staging"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "organization is required")
}

func TestSpaceUsersTool(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot/staging/blue/dev/users", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"foundation":"staging","organization":"blue","space":"dev","developers":["ana"],"users":["ana"]}`)
	})
	h := newTestHandler(t, mux)

	result, err := h.HandleTool(mcp.ToolCall{
		Name: "SnapshotForAFoundationOrganizationAndSpaceListAllUsersBySpaceRoles",
		Arguments: map[string]any{
			"foundation":   "staging",
			"organization": "blue",
			"space":        "dev",
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), `"developers"`)
	assert.Contains(t, textOf(t, result), "ana")
}

func TestFilteredSpaceUsersPaging(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot/spaces/users", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"foundation":"staging","organization":"blue","space":"dev","users":["ana"]},
			{"foundation":"production","organization":"blue","space":"dev","users":["bob"]},
			{"foundation":"staging","organization":"green","space":"qa","users":["cam"]}
		]`)
	})
	h := newTestHandler(t, mux)

	result, err := h.HandleTool(mcp.ToolCall{
		Name:      "SnapshotGetPageableFilteredSpaceUsers",
		Arguments: map[string]any{"foundation": "staging"},
	})
	require.NoError(t, err)

	text := textOf(t, result)
	assert.Contains(t, text, `"totalElements": 2`)
	assert.Contains(t, text, "ana")
	assert.Contains(t, text, "cam")
	assert.NotContains(t, text, "bob")
}

func TestBackendFailureReportsErrorResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot/demographics", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no foundations registered", http.StatusServiceUnavailable)
	})
	h := newTestHandler(t, mux)

	result, err := h.HandleTool(mcp.ToolCall{Name: "SnapshotGetDemographicsAcrossFoundations"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "no foundations registered")
}

func TestUnknownToolReportsError(t *testing.T) {
	h := newTestHandler(t, http.NewServeMux())

	result, err := h.HandleTool(mcp.ToolCall{Name: "Nope"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "unknown tool: Nope")
}

func TestPageableFilteredApplicationsAcrossFoundations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot/detail", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"applications":[
			{"app-name":"orders","organization":"blue","space":"dev"},
			{"app-name":"orders-ui","organization":"blue","space":"prod"},
			{"app-name":"billing","organization":"green","space":"dev"}],
			"service-instances":[],"application-relationships":[],"user-accounts":[],"service-accounts":[]}`)
	})
	h := newTestHandler(t, mux)

	result, err := h.HandleTool(mcp.ToolCall{
		Name:      "SnapshotGetPageableFilteredApplications",
		Arguments: map[string]any{"organization": "blue", "namePattern": "ui"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := textOf(t, result)
	assert.Contains(t, text, `"totalElements": 1`)
	assert.Contains(t, text, "orders-ui")
	assert.NotContains(t, text, "billing")
}

func TestPageableFilteredApplicationsRequiresOrganization(t *testing.T) {
	h := newTestHandler(t, http.NewServeMux())

	result, err := h.HandleTool(mcp.ToolCall{Name: "SnapshotGetPageableFilteredApplications"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "organization is required")
}

func TestPageableFilteredSpringApplications(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot/detail/ai/spring", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"app-name":"orders","organization":"blue","space":"dev","spring-dependencies":"spring-boot-2.7.x, spring-data-jpa"},
			{"app-name":"billing","organization":"blue","space":"dev","spring-dependencies":"spring-boot-3.2.x"},
			{"app-name":"ledger","organization":"green","space":"dev","spring-dependencies":"spring-boot-2.7.x"}]`)
	})
	h := newTestHandler(t, mux)

	result, err := h.HandleTool(mcp.ToolCall{
		Name:      "SnapshotGetPageableFilteredSpringApplications",
		Arguments: map[string]any{"organization": "blue", "dependencyPattern": "spring-boot-2.7"},
	})
	require.NoError(t, err)

	text := textOf(t, result)
	assert.Contains(t, text, `"totalElements": 1`)
	assert.Contains(t, text, `"app-name": "orders"`)
	assert.NotContains(t, text, "ledger")
}

func TestPageableFilteredServiceInstancesAcrossFoundations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot/detail", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"applications":[],"service-instances":[
			{"name":"orders-db","organization":"blue","space":"dev","service":"p.mysql","plan":"db-small"},
			{"name":"orders-cache","organization":"blue","space":"dev","service":"p.redis","plan":"cache-small"},
			{"name":"billing-db","organization":"green","space":"dev","service":"p.mysql","plan":"db-small"}],
			"application-relationships":[],"user-accounts":[],"service-accounts":[]}`)
	})
	h := newTestHandler(t, mux)

	result, err := h.HandleTool(mcp.ToolCall{
		Name:      "SnapshotGetPageableFilteredServiceInstances",
		Arguments: map[string]any{"organization": "blue", "servicePlan": "cache-small"},
	})
	require.NoError(t, err)

	text := textOf(t, result)
	assert.Contains(t, text, `"totalElements": 1`)
	assert.Contains(t, text, "orders-cache")
	assert.NotContains(t, text, "billing-db")
}
