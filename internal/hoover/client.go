// Package hoover talks to a cf-hoover instance, which aggregates
// snapshot and accounting data across multiple Cloud Foundry
// foundations.
package hoover

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

// Organization is one organization, qualified by its foundation.
type Organization struct {
	Foundation string `json:"foundation"`
	ID         string `json:"id"`
	Name       string `json:"name"`
}

// Space is one space, qualified by its foundation.
type Space struct {
	Foundation   string `json:"foundation"`
	Organization string `json:"organization"`
	Name         string `json:"name"`
}

// SpaceUsers lists role assignments for one foundation, organization,
// and space.
type SpaceUsers struct {
	Foundation   string   `json:"foundation"`
	Organization string   `json:"organization"`
	Space        string   `json:"space"`
	Auditors     []string `json:"auditors"`
	Developers   []string `json:"developers"`
	Managers     []string `json:"managers"`
	Users        []string `json:"users"`
}

// SnapshotDetail is the aggregated workload inventory across all
// foundations. Entry shapes belong to the reporting backend.
type SnapshotDetail struct {
	Applications             []map[string]any `json:"applications"`
	ServiceInstances         []map[string]any `json:"service-instances"`
	ApplicationRelationships []map[string]any `json:"application-relationships"`
	UserAccounts             []string         `json:"user-accounts"`
	ServiceAccounts          []string         `json:"service-accounts"`
}

// Client talks to one cf-hoover instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var sharedHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// NewClient creates a client for the cf-hoover API at baseURL.
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

// AppUsageReport returns the application usage report aggregated across
// all foundations.
func (c *Client) AppUsageReport() (json.RawMessage, error) {
	return c.get("/accounting/applications")
}

// ServiceUsageReport returns the aggregated service usage report.
func (c *Client) ServiceUsageReport() (json.RawMessage, error) {
	return c.get("/accounting/services")
}

// TaskUsageReport returns the aggregated task usage report.
func (c *Client) TaskUsageReport() (json.RawMessage, error) {
	return c.get("/accounting/tasks")
}

// CollectionTimes returns the last collection timestamp of each
// registered foundation.
func (c *Client) CollectionTimes() (json.RawMessage, error) {
	return c.get("/collect")
}

// Demographics returns counts aggregated across all foundations.
func (c *Client) Demographics() (json.RawMessage, error) {
	return c.get("/snapshot/demographics")
}

// SnapshotSummary returns the aggregated snapshot summary.
func (c *Client) SnapshotSummary() (json.RawMessage, error) {
	return c.get("/snapshot/summary")
}

// SpringDependencyFrequencies maps Spring dependency versions to
// occurrence counts across all foundations.
func (c *Client) SpringDependencyFrequencies() (map[string]int, error) {
	var frequencies map[string]int
	if err := c.getJSON("/snapshot/summary/ai/spring", &frequencies); err != nil {
		return nil, err
	}
	return frequencies, nil
}

// SnapshotDetail returns the aggregated workload inventory.
func (c *Client) SnapshotDetail() (*SnapshotDetail, error) {
	var detail SnapshotDetail
	if err := c.getJSON("/snapshot/detail", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SpringApplicationDetails returns per-application Spring metadata
// across all foundations.
func (c *Client) SpringApplicationDetails() ([]map[string]any, error) {
	var details []map[string]any
	if err := c.getJSON("/snapshot/detail/ai/spring", &details); err != nil {
		return nil, err
	}
	return details, nil
}

// Organizations lists every organization across all foundations.
func (c *Client) Organizations() ([]Organization, error) {
	var organizations []Organization
	if err := c.getJSON("/snapshot/organizations", &organizations); err != nil {
		return nil, err
	}
	return organizations, nil
}

// Spaces lists every space across all foundations.
func (c *Client) Spaces() ([]Space, error) {
	var spaces []Space
	if err := c.getJSON("/snapshot/spaces", &spaces); err != nil {
		return nil, err
	}
	return spaces, nil
}

// AllSpaceUsers returns role assignments for every foundation,
// organization, and space.
func (c *Client) AllSpaceUsers() ([]SpaceUsers, error) {
	var users []SpaceUsers
	if err := c.getJSON("/snapshot/spaces/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SpaceUsers returns role assignments for one foundation, organization,
// and space.
func (c *Client) SpaceUsers(foundation, organization, space string) (*SpaceUsers, error) {
	var users SpaceUsers
	path := fmt.Sprintf("/snapshot/%s/%s/%s/users",
		url.PathEscape(foundation), url.PathEscape(organization), url.PathEscape(space))
	if err := c.getJSON(path, &users); err != nil {
		return nil, err
	}
	return &users, nil
}

// UsersCount returns the total count of user and service accounts
// across all foundations.
func (c *Client) UsersCount() (int64, error) {
	body, err := c.get("/snapshot/users/count")
	if err != nil {
		return 0, err
	}
	count, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable count %q", string(body))
	}
	return count, nil
}
