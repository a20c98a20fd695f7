package butler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to one cf-butler instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Shared HTTP client with connection pooling
var sharedHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// NewClient creates a client for the cf-butler API at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	client := sharedHTTPClient
	if timeout > 0 && timeout != sharedHTTPClient.Timeout {
		client = &http.Client{
			Timeout:   timeout,
			Transport: sharedHTTPClient.Transport,
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

func (c *Client) get(path string) ([]byte, error) {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) getJSON(path string, out any) error {
	body, err := c.get(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) post(path string) error {
	req, err := http.NewRequest("POST", c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s returned %d: %s", path, resp.StatusCode, string(body))
	}
	return nil
}

// CollectionTime returns the last snapshot collection timestamp.
func (c *Client) CollectionTime() (json.RawMessage, error) {
	return c.get("/collect")
}

// Demographics returns foundation-wide counts.
func (c *Client) Demographics() (*Demographics, error) {
	var demographics Demographics
	if err := c.getJSON("/snapshot/demographics", &demographics); err != nil {
		return nil, err
	}
	return &demographics, nil
}

// SnapshotSummary returns the full snapshot summary report.
func (c *Client) SnapshotSummary() (json.RawMessage, error) {
	return c.get("/snapshot/summary")
}

// SpringDependencyFrequencies maps Spring dependency versions to their
// occurrence counts across Java buildpack applications.
func (c *Client) SpringDependencyFrequencies() (map[string]int, error) {
	var frequencies map[string]int
	if err := c.getJSON("/snapshot/summary/ai/spring", &frequencies); err != nil {
		return nil, err
	}
	return frequencies, nil
}

// SnapshotDetail returns the full workload inventory.
func (c *Client) SnapshotDetail() (*SnapshotDetail, error) {
	var detail SnapshotDetail
	if err := c.getJSON("/snapshot/detail", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SpringApplicationDetails returns per-application Spring metadata.
func (c *Client) SpringApplicationDetails() ([]map[string]string, error) {
	var details []map[string]string
	if err := c.getJSON("/snapshot/detail/ai/spring", &details); err != nil {
		return nil, err
	}
	return details, nil
}

// DormantWorkloads returns workloads not updated in the given number of
// days.
func (c *Client) DormantWorkloads(daysSinceLastUpdate int) (*Workloads, error) {
	var workloads Workloads
	path := fmt.Sprintf("/snapshot/detail/dormant/%d", daysSinceLastUpdate)
	if err := c.getJSON(path, &workloads); err != nil {
		return nil, err
	}
	return &workloads, nil
}

// LegacyWorkloads returns workloads on the given stacks or service
// offerings. Either filter may be empty.
func (c *Client) LegacyWorkloads(stacks, serviceOfferings string) (*Workloads, error) {
	query := url.Values{}
	query.Set("stacks", stacks)
	query.Set("service-offerings", serviceOfferings)

	var workloads Workloads
	if err := c.getJSON("/snapshot/detail/legacy?"+query.Encode(), &workloads); err != nil {
		return nil, err
	}
	return &workloads, nil
}

// Organizations lists every organization in the snapshot.
func (c *Client) Organizations() ([]Organization, error) {
	var organizations []Organization
	if err := c.getJSON("/snapshot/organizations", &organizations); err != nil {
		return nil, err
	}
	return organizations, nil
}

// OrganizationsCount returns the number of organizations.
func (c *Client) OrganizationsCount() (int64, error) {
	return c.count("/snapshot/organizations/count")
}

// Spaces lists every space in the snapshot.
func (c *Client) Spaces() ([]Space, error) {
	var spaces []Space
	if err := c.getJSON("/snapshot/spaces", &spaces); err != nil {
		return nil, err
	}
	return spaces, nil
}

// SpacesCount returns the number of spaces.
func (c *Client) SpacesCount() (int64, error) {
	return c.count("/snapshot/spaces/count")
}

// UsersCount returns the total number of user accounts.
func (c *Client) UsersCount() (int64, error) {
	return c.count("/snapshot/users/count")
}

func (c *Client) count(path string) (int64, error) {
	body, err := c.get(path)
	if err != nil {
		return 0, err
	}
	count, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("GET %s: unparseable count %q", path, string(body))
	}
	return count, nil
}

// SpaceUsers returns user role assignments for one organization and
// space.
func (c *Client) SpaceUsers(organization, space string) (*SpaceUsers, error) {
	var users SpaceUsers
	path := fmt.Sprintf("/snapshot/%s/%s/users", url.PathEscape(organization), url.PathEscape(space))
	if err := c.getJSON(path, &users); err != nil {
		return nil, err
	}
	return &users, nil
}

// AllSpaceUsers returns role assignments for every organization and
// space.
func (c *Client) AllSpaceUsers() ([]SpaceUsers, error) {
	var users []SpaceUsers
	if err := c.getJSON("/snapshot/spaces/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UserSpaces returns the organizations and spaces a single user account
// belongs to.
func (c *Client) UserSpaces(name string) (json.RawMessage, error) {
	return c.get("/snapshot/spaces/users/" + url.PathEscape(name))
}

// AppUsageReport returns the system-wide application usage report.
func (c *Client) AppUsageReport() (json.RawMessage, error) {
	return c.get("/accounting/applications")
}

// ServiceUsageReport returns the system-wide service usage report.
func (c *Client) ServiceUsageReport() (json.RawMessage, error) {
	return c.get("/accounting/services")
}

// TaskUsageReport returns the system-wide task usage report.
func (c *Client) TaskUsageReport() (json.RawMessage, error) {
	return c.get("/accounting/tasks")
}

// AppUsageForOrganization returns the application usage report for one
// organization over a date range. Dates are rendered as YYYY-MM-DD.
func (c *Client) AppUsageForOrganization(organization, startDate, endDate string) (string, error) {
	return c.orgUsage("applications", organization, startDate, endDate)
}

// ServiceUsageForOrganization returns the service usage report for one
// organization over a date range.
func (c *Client) ServiceUsageForOrganization(organization, startDate, endDate string) (string, error) {
	return c.orgUsage("services", organization, startDate, endDate)
}

// TaskUsageForOrganization returns the task usage report for one
// organization over a date range.
func (c *Client) TaskUsageForOrganization(organization, startDate, endDate string) (string, error) {
	return c.orgUsage("tasks", organization, startDate, endDate)
}

func (c *Client) orgUsage(report, organization, startDate, endDate string) (string, error) {
	path := fmt.Sprintf("/accounting/%s/%s/%s/%s", report, url.PathEscape(organization), startDate, endDate)
	body, err := c.get(path)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Policies returns all policies currently in effect.
func (c *Client) Policies() (*Policies, error) {
	var policies Policies
	if err := c.getJSON("/policies", &policies); err != nil {
		return nil, err
	}
	return &policies, nil
}

// PolicyByID fetches one policy of the given kind. Kind is the URL
// segment cf-butler uses: application, endpoint, hygiene, legacy,
// query, or serviceInstance.
func (c *Client) PolicyByID(kind, id string) (json.RawMessage, error) {
	var policies Policies
	path := fmt.Sprintf("/policies/%s/%s", kind, url.PathEscape(id))
	if err := c.getJSON(path, &policies); err != nil {
		return nil, err
	}

	var list []json.RawMessage
	switch kind {
	case "application":
		list = policies.ApplicationPolicies
	case "endpoint":
		list = policies.EndpointPolicies
	case "hygiene":
		list = policies.HygienePolicies
	case "legacy":
		list = policies.LegacyPolicies
	case "query":
		list = policies.QueryPolicies
	case "serviceInstance":
		list = policies.ServiceInstancePolicies
	default:
		return nil, fmt.Errorf("unknown policy kind: %s", kind)
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("no %s policy with id %s", kind, id)
	}
	return list[0], nil
}

// ExecutePolicies triggers policy execution.
func (c *Client) ExecutePolicies() error {
	return c.post("/policies/execute")
}

// RefreshPolicies reloads policies from their Git source.
func (c *Client) RefreshPolicies() error {
	return c.post("/policies/refresh")
}

// PoliciesReport returns the historical policy execution report for a
// date range.
func (c *Client) PoliciesReport(startDate, endDate string) (string, error) {
	query := url.Values{}
	query.Set("start", startDate)
	query.Set("end", endDate)
	body, err := c.get("/policies/report?" + query.Encode())
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// DeployedProducts lists products deployed via Operations Manager.
func (c *Client) DeployedProducts() (json.RawMessage, error) {
	return c.get("/products/deployed")
}

// ProductMetrics returns deployed buildpacks, stemcells, and tiles
// enhanced with release metadata from Tanzu Network.
func (c *Client) ProductMetrics() (json.RawMessage, error) {
	return c.get("/products/metrics")
}

// OmInfo returns the Operations Manager version.
func (c *Client) OmInfo() (json.RawMessage, error) {
	return c.get("/products/om/info")
}

// StemcellAssociations returns stemcell associations from Operations
// Manager (v2.6+).
func (c *Client) StemcellAssociations() (json.RawMessage, error) {
	return c.get("/products/stemcell/associations")
}

// ProductCatalog returns the Tanzu Network product catalog.
func (c *Client) ProductCatalog() (*ProductCatalog, error) {
	var catalog ProductCatalog
	if err := c.getJSON("/store/product/catalog", &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// ProductReleases returns Tanzu Network product releases for the given
// query option: latest, recent, or all.
func (c *Client) ProductReleases(option string) ([]map[string]any, error) {
	query := url.Values{}
	query.Set("q", option)

	var releases []map[string]any
	if err := c.getJSON("/store/product/releases?"+query.Encode(), &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// Events returns recent audit events for one entity.
func (c *Client) Events(id string, numberOfEvents int, types []string) (json.RawMessage, error) {
	query := url.Values{}
	if numberOfEvents > 0 {
		query.Set("numberOfEvents", strconv.Itoa(numberOfEvents))
	}
	for _, t := range types {
		query.Add("types", t)
	}

	path := "/events/" + url.PathEscape(id)
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return c.get(path)
}
