package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cf-toolsuite/cf-kaizen/internal/cache"
	"github.com/cf-toolsuite/cf-kaizen/internal/events"
	"github.com/cf-toolsuite/cf-kaizen/internal/hoover"
	"github.com/cf-toolsuite/cf-kaizen/pkg/mcp"
)

const (
	connectionName   = "cf-hoover"
	snapshotCacheTTL = 5 * time.Minute
)

// HooverHandler serves MCP tool calls against a cf-hoover instance,
// which aggregates data across Cloud Foundry foundations.
type HooverHandler struct {
	client    *hoover.Client
	cache     cache.Cache
	publisher *events.Publisher
}

// NewHooverHandler creates a handler backed by the given cf-hoover
// client. The publisher may be nil.
func NewHooverHandler(client *hoover.Client, store cache.Cache, publisher *events.Publisher) *HooverHandler {
	if store == nil {
		store = cache.NewMemoryCache()
	}
	return &HooverHandler{client: client, cache: store, publisher: publisher}
}

func pageableSchema(properties map[string]any, required ...string) map[string]any {
	merged := map[string]any{
		"pageNumber": map[string]any{
			"type":        "number",
			"description": "Page number (zero-based).",
		},
		"pageSize": map[string]any{
			"type":        "number",
			"description": "Page size (default is 10).",
		},
	}
	for name, prop := range properties {
		merged[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": merged,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func noArgsSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// ListTools returns every cf-hoover tool definition.
func (h *HooverHandler) ListTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "AccountingAggregateApplicationUsageReport",
			Description: "Retrieve aggregated application usage report. Fetches an aggregated report of application usage across all Cloud Foundry foundations.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "AccountingAggregateServiceUsageReport",
			Description: "Retrieve aggregated service usage report. Fetches an aggregated report of service usage across all Cloud Foundry foundations.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "AccountingAggregateTaskUsageReport",
			Description: "Retrieve aggregated task usage report. Fetches an aggregated report of task usage across all Cloud Foundry foundations.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "SnapshotFetchCollectionTimestampsForEachRegisteredFoundation",
			Description: "Retrieve collection timestamps from Cloud Foundry foundations. Retrieves the timestamp of the last data collection from each configured Cloud Foundry foundation.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "SnapshotGetDemographicsAcrossFoundations",
			Description: "Aggregate demographics across Cloud Foundry foundations. Retrieves aggregated demographic information, including counts of organizations, spaces, users, and service accounts across configured Cloud Foundry foundations.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "SnapshotGetSnapshotSummary",
			Description: "Retrieve a summary snapshot. Fetches a summarized snapshot including application and service instance counts from all configured Cloud Foundry foundations.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "SnapshotGetSpringDependencyFrequenciesSummary",
			Description: "Calculate Spring application dependency frequency. Calculates and returns the frequency of Spring application dependencies across all configured Cloud Foundry foundations.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "SnapshotTotalNumberOfUserAccounts",
			Description: "Retrieve the total count of users and service accounts. Returns the total count of user and service accounts aggregated across all Cloud Foundry foundations.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "SnapshotForAFoundationOrganizationAndSpaceListAllUsersBySpaceRoles",
			Description: "Retrieve space users for a specific foundation, organization, and space. Fetches space user information for a specific space within an organization in a given Cloud Foundry foundation.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"foundation": map[string]any{
						"type":        "string",
						"description": "Cloud Foundry foundation name.",
					},
					"organization": map[string]any{
						"type":        "string",
						"description": "Organization name.",
					},
					"space": map[string]any{
						"type":        "string",
						"description": "Space name.",
					},
				},
				"required": []string{"foundation", "organization", "space"},
			},
		},
		{
			Name:        "SnapshotGetPageableSpringApplicationDetails",
			Description: "Get pageable details of Spring Boot applications.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "SnapshotGetPageableApplications",
			Description: "Get pageable list of all applications.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "SnapshotGetPageableServiceInstances",
			Description: "Get pageable list of all service instances.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "SnapshotGetPageableRelationships",
			Description: "Get pageable list of all application-service relationships.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "SnapshotGetPageableUserAccounts",
			Description: "Get pageable list of all user accounts.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "SnapshotGetPageableServiceAccounts",
			Description: "Get pageable list of all service accounts.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "SnapshotGetPageableOrganizations",
			Description: "Get pageable list of all organizations.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "SnapshotGetPageableSpaces",
			Description: "Get pageable list of all spaces.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "SnapshotGetPageableSpaceUsers",
			Description: "Get pageable list of all space users.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "SnapshotGetPageableFilteredOrganizations",
			Description: "Get pageable list of organizations filtered by name pattern.",
			InputSchema: pageableSchema(map[string]any{
				"namePattern": map[string]any{
					"type":        "string",
					"description": "Organization name pattern to filter by (case-insensitive).",
				},
			}, "namePattern"),
		},
		{
			Name:        "SnapshotGetPageableFilteredSpaces",
			Description: "Get pageable list of spaces filtered by organization and/or name pattern.",
			InputSchema: pageableSchema(map[string]any{
				"organization": map[string]any{
					"type":        "string",
					"description": "Organization name to filter by.",
				},
				"namePattern": map[string]any{
					"type":        "string",
					"description": "Space name pattern to filter by (case-insensitive).",
				},
			}),
		},
		{
			Name:        "SnapshotGetPageableFilteredApplications",
			Description: "Get pageable list of applications filtered by various criteria.",
			InputSchema: pageableSchema(map[string]any{
				"organization": map[string]any{
					"type":        "string",
					"description": "Organization name to filter by.",
				},
				"space": map[string]any{
					"type":        "string",
					"description": "Space name to filter by.",
				},
				"namePattern": map[string]any{
					"type":        "string",
					"description": "Application name pattern to filter by (case-insensitive).",
				},
			}, "organization"),
		},
		{
			Name:        "SnapshotGetPageableFilteredSpringApplications",
			Description: "Get pageable list of Spring Boot applications filtered by various criteria.",
			InputSchema: pageableSchema(map[string]any{
				"organization": map[string]any{
					"type":        "string",
					"description": "Organization name to filter by.",
				},
				"space": map[string]any{
					"type":        "string",
					"description": "Space name to filter by.",
				},
				"namePattern": map[string]any{
					"type":        "string",
					"description": "Application name pattern to filter by (case-insensitive).",
				},
				"dependencyPattern": map[string]any{
					"type":        "string",
					"description": "Dependency pattern to filter by (case-insensitive).",
				},
			}, "organization"),
		},
		{
			Name:        "SnapshotGetPageableFilteredServiceInstances",
			Description: "Get pageable list of service instances filtered by various criteria.",
			InputSchema: pageableSchema(map[string]any{
				"organization": map[string]any{
					"type":        "string",
					"description": "Organization name to filter by.",
				},
				"space": map[string]any{
					"type":        "string",
					"description": "Space name to filter by.",
				},
				"namePattern": map[string]any{
					"type":        "string",
					"description": "Service instance name pattern to filter by (case-insensitive).",
				},
				"serviceOffering": map[string]any{
					"type":        "string",
					"description": "Service offering to filter by.",
				},
				"servicePlan": map[string]any{
					"type":        "string",
					"description": "Service plan to filter by.",
				},
			}, "organization"),
		},
		{
			Name:        "SnapshotGetPageableFilteredSpaceUsers",
			Description: "Get pageable list of space users filtered by foundation, organization, and/or space.",
			InputSchema: pageableSchema(map[string]any{
				"foundation": map[string]any{
					"type":        "string",
					"description": "Cloud Foundry foundation name to filter by.",
				},
				"organization": map[string]any{
					"type":        "string",
					"description": "Organization name to filter by.",
				},
				"space": map[string]any{
					"type":        "string",
					"description": "Space name to filter by.",
				},
			}),
		},
	}
}

// HandleTool dispatches one tool call, timing it and publishing an
// audit event.
func (h *HooverHandler) HandleTool(call mcp.ToolCall) (mcp.ToolResult, error) {
	started := time.Now()
	result, err := h.dispatch(call)

	h.publisher.Publish(context.Background(), events.ToolInvocationEvent{
		Tool:           call.Name,
		Connection:     connectionName,
		DurationMillis: time.Since(started).Milliseconds(),
		Succeeded:      err == nil && !result.IsError,
	})
	return result, err
}

func (h *HooverHandler) dispatch(call mcp.ToolCall) (mcp.ToolResult, error) {
	switch call.Name {
	case "AccountingAggregateApplicationUsageReport":
		return h.cachedRaw("hoover:accounting-applications", h.client.AppUsageReport)
	case "AccountingAggregateServiceUsageReport":
		return h.cachedRaw("hoover:accounting-services", h.client.ServiceUsageReport)
	case "AccountingAggregateTaskUsageReport":
		return h.cachedRaw("hoover:accounting-tasks", h.client.TaskUsageReport)
	case "SnapshotFetchCollectionTimestampsForEachRegisteredFoundation":
		return rawResult(h.client.CollectionTimes())
	case "SnapshotGetDemographicsAcrossFoundations":
		return rawResult(h.client.Demographics())
	case "SnapshotGetSnapshotSummary":
		return h.cachedRaw("hoover:snapshot-summary", h.client.SnapshotSummary)
	case "SnapshotGetSpringDependencyFrequenciesSummary":
		return jsonResult(h.client.SpringDependencyFrequencies())
	case "SnapshotTotalNumberOfUserAccounts":
		count, err := h.client.UsersCount()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return mcp.TextResult(fmt.Sprintf("%d", count)), nil
	case "SnapshotForAFoundationOrganizationAndSpaceListAllUsersBySpaceRoles":
		foundation, err := stringArg(call, "foundation")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		organization, err := stringArg(call, "organization")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		space, err := stringArg(call, "space")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return jsonResult(h.client.SpaceUsers(foundation, organization, space))
	case "SnapshotGetPageableSpringApplicationDetails":
		details, err := h.client.SpringApplicationDetails()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(details, call)
	case "SnapshotGetPageableApplications":
		return h.snapshotDetailPage(call, func(d *hoover.SnapshotDetail) []map[string]any { return d.Applications })
	case "SnapshotGetPageableServiceInstances":
		return h.snapshotDetailPage(call, func(d *hoover.SnapshotDetail) []map[string]any { return d.ServiceInstances })
	case "SnapshotGetPageableRelationships":
		return h.snapshotDetailPage(call, func(d *hoover.SnapshotDetail) []map[string]any { return d.ApplicationRelationships })
	case "SnapshotGetPageableUserAccounts":
		detail, err := h.snapshotDetail()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(detail.UserAccounts, call)
	case "SnapshotGetPageableServiceAccounts":
		detail, err := h.snapshotDetail()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(detail.ServiceAccounts, call)
	case "SnapshotGetPageableOrganizations":
		organizations, err := h.client.Organizations()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(organizations, call)
	case "SnapshotGetPageableSpaces":
		spaces, err := h.client.Spaces()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(spaces, call)
	case "SnapshotGetPageableSpaceUsers":
		users, err := h.client.AllSpaceUsers()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(users, call)
	case "SnapshotGetPageableFilteredOrganizations":
		pattern, err := stringArg(call, "namePattern")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		organizations, err := h.client.Organizations()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(hoover.FilterOrganizations(organizations, pattern), call)
	case "SnapshotGetPageableFilteredSpaces":
		spaces, err := h.client.Spaces()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		filtered := hoover.FilterSpaces(spaces, optionalStringArg(call, "organization"), optionalStringArg(call, "namePattern"))
		return pageResult(filtered, call)
	case "SnapshotGetPageableFilteredApplications":
		organization, err := stringArg(call, "organization")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return h.filteredInventoryPage(call,
			func(d *hoover.SnapshotDetail) []map[string]any { return d.Applications },
			map[string]string{
				"organization": organization,
				"space":        optionalStringArg(call, "space"),
			},
			map[string]string{"app-name": optionalStringArg(call, "namePattern")})
	case "SnapshotGetPageableFilteredSpringApplications":
		organization, err := stringArg(call, "organization")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		details, err := h.client.SpringApplicationDetails()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		filtered := hoover.FilterEntries(details,
			map[string]string{
				"organization": organization,
				"space":        optionalStringArg(call, "space"),
			},
			map[string]string{
				"app-name":            optionalStringArg(call, "namePattern"),
				"spring-dependencies": optionalStringArg(call, "dependencyPattern"),
			})
		return pageResult(filtered, call)
	case "SnapshotGetPageableFilteredServiceInstances":
		organization, err := stringArg(call, "organization")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return h.filteredInventoryPage(call,
			func(d *hoover.SnapshotDetail) []map[string]any { return d.ServiceInstances },
			map[string]string{
				"organization": organization,
				"space":        optionalStringArg(call, "space"),
				"service":      optionalStringArg(call, "serviceOffering"),
				"plan":         optionalStringArg(call, "servicePlan"),
			},
			map[string]string{"name": optionalStringArg(call, "namePattern")})
	case "SnapshotGetPageableFilteredSpaceUsers":
		users, err := h.client.AllSpaceUsers()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		filtered := hoover.FilterSpaceUsers(users,
			optionalStringArg(call, "foundation"),
			optionalStringArg(call, "organization"),
			optionalStringArg(call, "space"))
		return pageResult(filtered, call)
	default:
		return mcp.ErrorResult(fmt.Sprintf("unknown tool: %s", call.Name)), nil
	}
}

func (h *HooverHandler) snapshotDetail() (*hoover.SnapshotDetail, error) {
	ctx := context.Background()
	if cached, ok := h.cache.Get(ctx, "hoover:snapshot-detail"); ok {
		var detail hoover.SnapshotDetail
		if err := json.Unmarshal(cached, &detail); err == nil {
			return &detail, nil
		}
	}

	detail, err := h.client.SnapshotDetail()
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(detail); err == nil {
		h.cache.Set(ctx, "hoover:snapshot-detail", encoded, snapshotCacheTTL)
	}
	return detail, nil
}

func (h *HooverHandler) snapshotDetailPage(call mcp.ToolCall, pick func(*hoover.SnapshotDetail) []map[string]any) (mcp.ToolResult, error) {
	detail, err := h.snapshotDetail()
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return pageResult(pick(detail), call)
}

func (h *HooverHandler) filteredInventoryPage(call mcp.ToolCall, pick func(*hoover.SnapshotDetail) []map[string]any, exact, patterns map[string]string) (mcp.ToolResult, error) {
	detail, err := h.snapshotDetail()
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return pageResult(hoover.FilterEntries(pick(detail), exact, patterns), call)
}

func (h *HooverHandler) cachedRaw(key string, fetch func() (json.RawMessage, error)) (mcp.ToolResult, error) {
	ctx := context.Background()
	if cached, ok := h.cache.Get(ctx, key); ok {
		return mcp.TextResult(string(cached)), nil
	}

	payload, err := fetch()
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	h.cache.Set(ctx, key, payload, snapshotCacheTTL)
	return mcp.TextResult(string(payload)), nil
}

func pageResult[T any](items []T, call mcp.ToolCall) (mcp.ToolResult, error) {
	page := hoover.Paginate(items, optionalIntArg(call, "pageNumber"), optionalIntArg(call, "pageSize"))
	return jsonResult(page, nil)
}

func rawResult(payload json.RawMessage, err error) (mcp.ToolResult, error) {
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.TextResult(string(payload)), nil
}

func jsonResult(value any, err error) (mcp.ToolResult, error) {
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.TextResult(string(encoded)), nil
}

func stringArg(call mcp.ToolCall, key string) (string, error) {
	value, ok := call.Arguments[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

func optionalStringArg(call mcp.ToolCall, key string) string {
	value, _ := call.Arguments[key].(string)
	return value
}

func optionalIntArg(call mcp.ToolCall, key string) int {
	value, _ := call.Arguments[key].(float64)
	return int(value)
}
