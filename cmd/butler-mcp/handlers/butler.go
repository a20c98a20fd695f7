package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cf-toolsuite/cf-kaizen/internal/butler"
	"github.com/cf-toolsuite/cf-kaizen/internal/cache"
	"github.com/cf-toolsuite/cf-kaizen/internal/events"
	"github.com/cf-toolsuite/cf-kaizen/pkg/mcp"
)

const (
	connectionName   = "cf-butler"
	snapshotCacheTTL = 5 * time.Minute
)

// ButlerHandler serves MCP tool calls against a single cf-butler
// instance.
type ButlerHandler struct {
	client    *butler.Client
	cache     cache.Cache
	publisher *events.Publisher
}

// NewButlerHandler creates a handler backed by the given cf-butler
// client. The cache holds snapshot payloads between calls; the
// publisher may be nil.
func NewButlerHandler(client *butler.Client, store cache.Cache, publisher *events.Publisher) *ButlerHandler {
	if store == nil {
		store = cache.NewMemoryCache()
	}
	return &ButlerHandler{client: client, cache: store, publisher: publisher}
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

func orgDateRangeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"orgName": map[string]any{
				"type":        "string",
				"description": "Organization name.",
			},
			"startDate": map[string]any{
				"type":        "string",
				"description": "Start date (YYYY-MM-DD).",
			},
			"endDate": map[string]any{
				"type":        "string",
				"description": "End date (YYYY-MM-DD).",
			},
		},
		"required": []string{"orgName", "startDate", "endDate"},
	}
}

func slugPatternSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"slugPattern": map[string]any{
				"type":        "string",
				"description": "Product slug pattern.",
			},
		},
		"required": []string{"slugPattern"},
	}
}

func policyIDSchema(kind string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{
				"type":        "string",
				"description": fmt.Sprintf("ID of the %s policy.", kind),
			},
		},
		"required": []string{"id"},
	}
}

// ListTools returns every cf-butler tool definition.
func (h *ButlerHandler) ListTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "GetLastSnapshotCollectionTime",
			Description: "(Butler) Get the last snapshot collection date and time.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetFoundationDemographics",
			Description: "(Butler) Get foundation demographics, including counts of organizations, spaces, user accounts, and service accounts.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetSnapshotSummary",
			Description: "(Butler) Get a summary snapshot including application and service instance counts.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetSpringDependencyFrequenciesSummary",
			Description: "(Butler) Get the frequency of Spring dependency versions across Java applications.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "TotalNumberOfOrganizations",
			Description: "(Butler) Get the count of organizations.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "TotalNumberOfSpaces",
			Description: "(Butler) Get the count of spaces.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "TotalNumberOfUserAccounts",
			Description: "(Butler) Get the total count of user accounts.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetUsersInOrganizationAndSpace",
			Description: "(Butler) Get users by space role in a specific organization and space.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"organization": map[string]any{
						"type":        "string",
						"description": "Organization name.",
					},
					"space": map[string]any{
						"type":        "string",
						"description": "Space name.",
					},
				},
				"required": []string{"organization", "space"},
			},
		},
		{
			Name:        "ListAllSpacesAssociatedWithUserAccount",
			Description: "(Butler) List all the organizations/spaces associated with a single user account.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "User account name.",
					},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        "GetPageableSpringApplicationDetails",
			Description: "(Butler) Get pageable details of Spring applications.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "GetPageableApplications",
			Description: "(Butler) Get pageable list of all applications.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "GetPageableServiceInstances",
			Description: "(Butler) Get pageable list of all service instances.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "GetPageableRelationships",
			Description: "(Butler) Get pageable list of all application-service relationships.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "GetPageableUserAccounts",
			Description: "(Butler) Get pageable list of all user accounts.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "GetPageableServiceAccounts",
			Description: "(Butler) Get pageable list of all service accounts.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "GetPageableOrganizations",
			Description: "(Butler) Get pageable list of all organizations.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "GetPageableSpaces",
			Description: "(Butler) Get pageable list of all spaces.",
			InputSchema: pageableSchema(nil),
		},
		{
			Name:        "GetPageableFilteredOrganizations",
			Description: "(Butler) Get pageable list of organizations filtered by name pattern.",
			InputSchema: pageableSchema(map[string]any{
				"namePattern": map[string]any{
					"type":        "string",
					"description": "Organization name pattern to filter by (case-insensitive).",
				},
			}, "namePattern"),
		},
		{
			Name:        "GetPageableFilteredSpaces",
			Description: "(Butler) Get pageable list of spaces filtered by organization and/or name pattern.",
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
			Name:        "GetPageableFilteredApplications",
			Description: "(Butler) Get pageable list of applications filtered by various criteria.",
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
				"buildpack": map[string]any{
					"type":        "string",
					"description": "Buildpack to filter by.",
				},
				"stack": map[string]any{
					"type":        "string",
					"description": "Stack to filter by.",
				},
			}, "organization"),
		},
		{
			Name:        "GetPageableFilteredServiceInstances",
			Description: "(Butler) Get pageable list of service instances filtered by various criteria.",
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
			Name:        "GetPageableFilteredRelationships",
			Description: "(Butler) Get pageable list of relationships filtered by application name.",
			InputSchema: pageableSchema(map[string]any{
				"applicationName": map[string]any{
					"type":        "string",
					"description": "Application name to filter by.",
				},
			}, "applicationName"),
		},
		{
			Name:        "GetPageableFilteredUserAccounts",
			Description: "(Butler) Get pageable list of user accounts filtered by name pattern.",
			InputSchema: pageableSchema(map[string]any{
				"namePattern": map[string]any{
					"type":        "string",
					"description": "User account name pattern to filter by (case-insensitive).",
				},
			}, "namePattern"),
		},
		{
			Name:        "GetPageableDormantApplications",
			Description: "(Butler) Get pageable list of dormant applications.",
			InputSchema: pageableSchema(map[string]any{
				"daysSinceLastUpdate": map[string]any{
					"type":        "number",
					"description": "Number of days since the last update to consider workloads dormant.",
				},
			}, "daysSinceLastUpdate"),
		},
		{
			Name:        "GetPageableDormantServiceInstances",
			Description: "(Butler) Get pageable list of dormant service instances.",
			InputSchema: pageableSchema(map[string]any{
				"daysSinceLastUpdate": map[string]any{
					"type":        "number",
					"description": "Number of days since the last update to consider workloads dormant.",
				},
			}, "daysSinceLastUpdate"),
		},
		{
			Name:        "GetPageableDormantRelationships",
			Description: "(Butler) Get pageable list of dormant application-service relationships.",
			InputSchema: pageableSchema(map[string]any{
				"daysSinceLastUpdate": map[string]any{
					"type":        "number",
					"description": "Number of days since the last update to consider workloads dormant.",
				},
			}, "daysSinceLastUpdate"),
		},
		{
			Name:        "GetPageableApplicationsWithLegacyStack",
			Description: "(Butler) Get pageable list of applications with legacy stack.",
			InputSchema: pageableSchema(map[string]any{
				"stacks": map[string]any{
					"type":        "string",
					"description": "Comma-separated list of stacks to filter by.",
				},
			}, "stacks"),
		},
		{
			Name:        "GetPageableServiceInstancesWithLegacyServiceOffering",
			Description: "(Butler) Get pageable list of service instances with legacy service offering.",
			InputSchema: pageableSchema(map[string]any{
				"serviceOfferings": map[string]any{
					"type":        "string",
					"description": "Comma-separated list of service offerings to filter by.",
				},
			}, "serviceOfferings"),
		},
		{
			Name:        "GetAccountingApplicationsReport",
			Description: "(Butler) Get system-wide application usage report.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetAccountingApplicationsOrgReport",
			Description: "(Butler) Get application usage report for an organization within a date range.",
			InputSchema: orgDateRangeSchema(),
		},
		{
			Name:        "GetAccountingServicesReport",
			Description: "(Butler) Get system-wide service usage report.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetAccountingServicesOrgReport",
			Description: "(Butler) Get service usage report for an organization within a date range.",
			InputSchema: orgDateRangeSchema(),
		},
		{
			Name:        "GetAccountingTasksReport",
			Description: "(Butler) Get system-wide task usage report.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetAccountingTasksOrgReport",
			Description: "(Butler) Get task usage report for an organization within a date range.",
			InputSchema: orgDateRangeSchema(),
		},
		{
			Name:        "PolicyListAllPolicies",
			Description: "(Butler) List all policies in effect. All policy configuration is returned, grouped by policy type.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "PolicyGetApplicationPolicyById",
			Description: "(Butler) Get a specific application policy by ID.",
			InputSchema: policyIDSchema("application"),
		},
		{
			Name:        "PolicyGetEndpointPolicyById",
			Description: "(Butler) Get a specific endpoint policy by ID.",
			InputSchema: policyIDSchema("endpoint"),
		},
		{
			Name:        "PolicyGetHygienePolicyById",
			Description: "(Butler) Get a specific hygiene policy by ID.",
			InputSchema: policyIDSchema("hygiene"),
		},
		{
			Name:        "PolicyGetLegacyPolicyById",
			Description: "(Butler) Get a specific legacy policy by ID.",
			InputSchema: policyIDSchema("legacy"),
		},
		{
			Name:        "PolicyGetQueryPolicyById",
			Description: "(Butler) Get a specific query policy by ID.",
			InputSchema: policyIDSchema("query"),
		},
		{
			Name:        "PolicyGetServiceInstancePolicyById",
			Description: "(Butler) Get a specific service instance policy by ID.",
			InputSchema: policyIDSchema("service instance"),
		},
		{
			Name:        "PolicyTriggerPolicyExecution",
			Description: "(Butler) Trigger policy execution.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "PolicyRefreshPolicies",
			Description: "(Butler) Refresh policies from Git repository.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "PolicyGetHistoricalReportOfPolicyExecutions",
			Description: "(Butler) Generate a historical report of policy executions.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start": map[string]any{
						"type":        "string",
						"description": "Start date for the report (YYYY-MM-DD).",
					},
					"end": map[string]any{
						"type":        "string",
						"description": "End date for the report (YYYY-MM-DD).",
					},
				},
				"required": []string{"start", "end"},
			},
		},
		{
			Name:        "GetDeployedProducts",
			Description: "(Butler) Get deployed products from Operations Manager.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetDeployedProductInsights",
			Description: "(Butler) Assembles lists of deployed products from Operations Manager. Lists include buildpacks, stemcells, and tiles. Each entry in each list is enhanced with release metadata from Tanzu Network.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetOperationsManagerVersion",
			Description: "(Butler) Get the version of Operations Manager.",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetStemcellAssociations",
			Description: "(Butler) Get stemcell associations from Operations Manager (v2.6+).",
			InputSchema: noArgsSchema(),
		},
		{
			Name:        "GetProductInfoByName",
			Description: "(Butler) Get product information by name from Tanzu Network.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"namePattern": map[string]any{
						"type":        "string",
						"description": "Product name pattern.",
					},
				},
				"required": []string{"namePattern"},
			},
		},
		{
			Name:        "GetLatestProductReleaseBySlug",
			Description: "(Butler) Get latest product release by slug from Tanzu Network.",
			InputSchema: slugPatternSchema(),
		},
		{
			Name:        "GetRecentProductReleaseBySlug",
			Description: "(Butler) Get recent product release by slug from Tanzu Network.",
			InputSchema: slugPatternSchema(),
		},
		{
			Name:        "GetAllProductReleasesBySlug",
			Description: "(Butler) Get all product releases by slug from Tanzu Network.",
			InputSchema: slugPatternSchema(),
		},
		{
			Name:        "GetEventsById",
			Description: "(Butler) Get events for a specific entity.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "ID of the entity to retrieve events for.",
					},
					"numberOfEvents": map[string]any{
						"type":        "number",
						"description": "Number of events to retrieve.",
					},
					"types": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Array of event types to filter by.",
					},
				},
				"required": []string{"id"},
			},
		},
	}
}

// HandleTool dispatches one tool call, timing it and publishing an
// audit event.
func (h *ButlerHandler) HandleTool(call mcp.ToolCall) (mcp.ToolResult, error) {
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

func (h *ButlerHandler) dispatch(call mcp.ToolCall) (mcp.ToolResult, error) {
	switch call.Name {
	case "GetLastSnapshotCollectionTime":
		return rawResult(h.client.CollectionTime())
	case "GetFoundationDemographics":
		return jsonResult(h.client.Demographics())
	case "GetSnapshotSummary":
		return h.cachedRaw("butler:snapshot-summary", h.client.SnapshotSummary)
	case "GetSpringDependencyFrequenciesSummary":
		return jsonResult(h.client.SpringDependencyFrequencies())
	case "TotalNumberOfOrganizations":
		return countResult(h.client.OrganizationsCount())
	case "TotalNumberOfSpaces":
		return countResult(h.client.SpacesCount())
	case "TotalNumberOfUserAccounts":
		return countResult(h.client.UsersCount())
	case "GetUsersInOrganizationAndSpace":
		organization, err := stringArg(call, "organization")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		space, err := stringArg(call, "space")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return jsonResult(h.client.SpaceUsers(organization, space))
	case "ListAllSpacesAssociatedWithUserAccount":
		name, err := stringArg(call, "name")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return rawResult(h.client.UserSpaces(name))
	case "GetPageableSpringApplicationDetails":
		details, err := h.client.SpringApplicationDetails()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(details, call)
	case "GetPageableApplications":
		return h.snapshotDetailPage(call, func(d *butler.SnapshotDetail) []map[string]any { return d.Applications })
	case "GetPageableServiceInstances":
		return h.snapshotDetailPage(call, func(d *butler.SnapshotDetail) []map[string]any { return d.ServiceInstances })
	case "GetPageableRelationships":
		return h.snapshotDetailPage(call, func(d *butler.SnapshotDetail) []map[string]any { return d.ApplicationRelationships })
	case "GetPageableUserAccounts":
		detail, err := h.snapshotDetail()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(detail.UserAccounts, call)
	case "GetPageableServiceAccounts":
		detail, err := h.snapshotDetail()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(detail.ServiceAccounts, call)
	case "GetPageableOrganizations":
		organizations, err := h.client.Organizations()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(organizations, call)
	case "GetPageableSpaces":
		spaces, err := h.client.Spaces()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(spaces, call)
	case "GetPageableFilteredOrganizations":
		pattern, err := stringArg(call, "namePattern")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		organizations, err := h.client.Organizations()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(butler.FilterByName(organizations, pattern), call)
	case "GetPageableFilteredSpaces":
		organization := optionalStringArg(call, "organization")
		pattern := optionalStringArg(call, "namePattern")
		spaces, err := h.client.Spaces()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(butler.FilterSpaces(spaces, organization, pattern), call)
	case "GetPageableFilteredApplications":
		organization, err := stringArg(call, "organization")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return h.filteredInventoryPage(call,
			func(d *butler.SnapshotDetail) []map[string]any { return d.Applications },
			map[string]string{
				"organization": organization,
				"space":        optionalStringArg(call, "space"),
				"buildpack":    optionalStringArg(call, "buildpack"),
				"stack":        optionalStringArg(call, "stack"),
			},
			map[string]string{"app-name": optionalStringArg(call, "namePattern")})
	case "GetPageableFilteredServiceInstances":
		organization, err := stringArg(call, "organization")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return h.filteredInventoryPage(call,
			func(d *butler.SnapshotDetail) []map[string]any { return d.ServiceInstances },
			map[string]string{
				"organization": organization,
				"space":        optionalStringArg(call, "space"),
				"service":      optionalStringArg(call, "serviceOffering"),
				"plan":         optionalStringArg(call, "servicePlan"),
			},
			map[string]string{"name": optionalStringArg(call, "namePattern")})
	case "GetPageableFilteredRelationships":
		applicationName, err := stringArg(call, "applicationName")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return h.filteredInventoryPage(call,
			func(d *butler.SnapshotDetail) []map[string]any { return d.ApplicationRelationships },
			map[string]string{"app-name": applicationName},
			nil)
	case "GetPageableFilteredUserAccounts":
		pattern, err := stringArg(call, "namePattern")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		detail, err := h.snapshotDetail()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(butler.FilterStrings(detail.UserAccounts, pattern), call)
	case "GetPageableDormantApplications":
		return h.dormantPage(call, func(w *butler.Workloads) []map[string]any { return w.Applications })
	case "GetPageableDormantServiceInstances":
		return h.dormantPage(call, func(w *butler.Workloads) []map[string]any { return w.ServiceInstances })
	case "GetPageableDormantRelationships":
		return h.dormantPage(call, func(w *butler.Workloads) []map[string]any { return w.ApplicationRelationships })
	case "GetPageableApplicationsWithLegacyStack":
		stacks, err := stringArg(call, "stacks")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		workloads, err := h.client.LegacyWorkloads(stacks, "")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(workloads.Applications, call)
	case "GetPageableServiceInstancesWithLegacyServiceOffering":
		serviceOfferings, err := stringArg(call, "serviceOfferings")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		workloads, err := h.client.LegacyWorkloads("", serviceOfferings)
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return pageResult(workloads.ServiceInstances, call)
	case "GetAccountingApplicationsReport":
		return h.cachedRaw("butler:accounting-applications", h.client.AppUsageReport)
	case "GetAccountingServicesReport":
		return h.cachedRaw("butler:accounting-services", h.client.ServiceUsageReport)
	case "GetAccountingTasksReport":
		return h.cachedRaw("butler:accounting-tasks", h.client.TaskUsageReport)
	case "GetAccountingApplicationsOrgReport":
		return h.orgUsage(call, h.client.AppUsageForOrganization)
	case "GetAccountingServicesOrgReport":
		return h.orgUsage(call, h.client.ServiceUsageForOrganization)
	case "GetAccountingTasksOrgReport":
		return h.orgUsage(call, h.client.TaskUsageForOrganization)
	case "PolicyListAllPolicies":
		return jsonResult(h.client.Policies())
	case "PolicyGetApplicationPolicyById":
		return h.policyByID(call, "application")
	case "PolicyGetEndpointPolicyById":
		return h.policyByID(call, "endpoint")
	case "PolicyGetHygienePolicyById":
		return h.policyByID(call, "hygiene")
	case "PolicyGetLegacyPolicyById":
		return h.policyByID(call, "legacy")
	case "PolicyGetQueryPolicyById":
		return h.policyByID(call, "query")
	case "PolicyGetServiceInstancePolicyById":
		return h.policyByID(call, "serviceInstance")
	case "PolicyTriggerPolicyExecution":
		if err := h.client.ExecutePolicies(); err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return mcp.TextResult("Policy execution triggered."), nil
	case "PolicyRefreshPolicies":
		if err := h.client.RefreshPolicies(); err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return mcp.TextResult("Policies refreshed from Git repository."), nil
	case "PolicyGetHistoricalReportOfPolicyExecutions":
		start, err := stringArg(call, "start")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		end, err := stringArg(call, "end")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		report, err := h.client.PoliciesReport(start, end)
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return mcp.TextResult(report), nil
	case "GetDeployedProducts":
		return rawResult(h.client.DeployedProducts())
	case "GetDeployedProductInsights":
		return rawResult(h.client.ProductMetrics())
	case "GetOperationsManagerVersion":
		return rawResult(h.client.OmInfo())
	case "GetStemcellAssociations":
		return rawResult(h.client.StemcellAssociations())
	case "GetProductInfoByName":
		pattern, err := stringArg(call, "namePattern")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		catalog, err := h.client.ProductCatalog()
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		matches := butler.FilterEntries(catalog.Products, nil, map[string]string{"name": pattern})
		if len(matches) == 0 {
			return mcp.ErrorResult(fmt.Sprintf("no product found matching %q", pattern)), nil
		}
		return jsonResult(matches[0], nil)
	case "GetLatestProductReleaseBySlug":
		return h.productReleaseBySlug(call, "latest", false)
	case "GetRecentProductReleaseBySlug":
		return h.productReleaseBySlug(call, "recent", false)
	case "GetAllProductReleasesBySlug":
		return h.productReleaseBySlug(call, "all", true)
	case "GetEventsById":
		id, err := stringArg(call, "id")
		if err != nil {
			return mcp.ErrorResult(err.Error()), nil
		}
		return rawResult(h.client.Events(id, optionalIntArg(call, "numberOfEvents"), stringSliceArg(call, "types")))
	default:
		return mcp.ErrorResult(fmt.Sprintf("unknown tool: %s", call.Name)), nil
	}
}

func (h *ButlerHandler) snapshotDetail() (*butler.SnapshotDetail, error) {
	ctx := context.Background()
	if cached, ok := h.cache.Get(ctx, "butler:snapshot-detail"); ok {
		var detail butler.SnapshotDetail
		if err := json.Unmarshal(cached, &detail); err == nil {
			return &detail, nil
		}
	}

	detail, err := h.client.SnapshotDetail()
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(detail); err == nil {
		h.cache.Set(ctx, "butler:snapshot-detail", encoded, snapshotCacheTTL)
	}
	return detail, nil
}

func (h *ButlerHandler) snapshotDetailPage(call mcp.ToolCall, pick func(*butler.SnapshotDetail) []map[string]any) (mcp.ToolResult, error) {
	detail, err := h.snapshotDetail()
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return pageResult(pick(detail), call)
}

func (h *ButlerHandler) filteredInventoryPage(call mcp.ToolCall, pick func(*butler.SnapshotDetail) []map[string]any, exact, patterns map[string]string) (mcp.ToolResult, error) {
	detail, err := h.snapshotDetail()
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return pageResult(butler.FilterEntries(pick(detail), exact, patterns), call)
}

func (h *ButlerHandler) productReleaseBySlug(call mcp.ToolCall, option string, all bool) (mcp.ToolResult, error) {
	pattern, err := stringArg(call, "slugPattern")
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	releases, err := h.client.ProductReleases(option)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	matches := butler.FilterEntries(releases, nil, map[string]string{"slug": pattern})
	if all {
		return jsonResult(matches, nil)
	}
	if len(matches) == 0 {
		return mcp.ErrorResult(fmt.Sprintf("no %s release found matching %q", option, pattern)), nil
	}
	return jsonResult(matches[0], nil)
}

func (h *ButlerHandler) dormantPage(call mcp.ToolCall, pick func(*butler.Workloads) []map[string]any) (mcp.ToolResult, error) {
	days, err := intArg(call, "daysSinceLastUpdate")
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	workloads, err := h.client.DormantWorkloads(days)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return pageResult(pick(workloads), call)
}

func (h *ButlerHandler) orgUsage(call mcp.ToolCall, fetch func(org, start, end string) (string, error)) (mcp.ToolResult, error) {
	orgName, err := stringArg(call, "orgName")
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	startDate, err := stringArg(call, "startDate")
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	endDate, err := stringArg(call, "endDate")
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	report, err := fetch(orgName, startDate, endDate)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.TextResult(report), nil
}

func (h *ButlerHandler) policyByID(call mcp.ToolCall, kind string) (mcp.ToolResult, error) {
	id, err := stringArg(call, "id")
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return rawResult(h.client.PolicyByID(kind, id))
}

func (h *ButlerHandler) cachedRaw(key string, fetch func() (json.RawMessage, error)) (mcp.ToolResult, error) {
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
	page := butler.Paginate(items, optionalIntArg(call, "pageNumber"), optionalIntArg(call, "pageSize"))
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

func countResult(count int64, err error) (mcp.ToolResult, error) {
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.TextResult(fmt.Sprintf("%d", count)), nil
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

func intArg(call mcp.ToolCall, key string) (int, error) {
	value, ok := call.Arguments[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	return int(value), nil
}

func optionalIntArg(call mcp.ToolCall, key string) int {
	value, _ := call.Arguments[key].(float64)
	return int(value)
}

func stringSliceArg(call mcp.ToolCall, key string) []string {
	raw, ok := call.Arguments[key].([]any)
	if !ok {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values
}
