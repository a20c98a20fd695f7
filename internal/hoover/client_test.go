package hoover

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hooverBackend(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/accounting/applications", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"report-time":"2026-09-01","monthly-reports":[]}`))
	})
	mux.HandleFunc("/snapshot/organizations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"foundation":"east","id":"1","name":"zoo-labs"},{"foundation":"west","id":"2","name":"dev"}]`))
	})
	mux.HandleFunc("/snapshot/east/zoo-labs/dev/users", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"foundation":"east","organization":"zoo-labs","space":"dev","developers":["alice"]}`))
	})
	mux.HandleFunc("/snapshot/users/count", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("57"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such endpoint", http.StatusNotFound)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, 5*time.Second)
}

func TestClientAppUsageReport(t *testing.T) {
	client := hooverBackend(t)

	report, err := client.AppUsageReport()
	require.NoError(t, err)
	assert.Contains(t, string(report), "monthly-reports")
}

func TestClientOrganizations(t *testing.T) {
	client := hooverBackend(t)

	organizations, err := client.Organizations()
	require.NoError(t, err)
	require.Len(t, organizations, 2)
	assert.Equal(t, "east", organizations[0].Foundation)
}

func TestClientSpaceUsersByFoundation(t *testing.T) {
	client := hooverBackend(t)

	users, err := client.SpaceUsers("east", "zoo-labs", "dev")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users.Developers)
}

func TestClientUsersCount(t *testing.T) {
	client := hooverBackend(t)

	count, err := client.UsersCount()
	require.NoError(t, err)
	assert.Equal(t, int64(57), count)
}

func TestClientErrorIncludesBody(t *testing.T) {
	client := hooverBackend(t)

	_, err := client.SnapshotSummary()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFilterOrganizations(t *testing.T) {
	organizations := []Organization{
		{Foundation: "east", Name: "zoo-labs"},
		{Foundation: "west", Name: "Dev-Sandbox"},
	}

	assert.Len(t, FilterOrganizations(organizations, ""), 2)
	assert.Len(t, FilterOrganizations(organizations, "ZOO"), 1)
	assert.Empty(t, FilterOrganizations(organizations, "prod"))
}

func TestFilterSpaces(t *testing.T) {
	spaces := []Space{
		{Foundation: "east", Organization: "zoo-labs", Name: "dev"},
		{Foundation: "east", Organization: "zoo-labs", Name: "prod"},
		{Foundation: "west", Organization: "other", Name: "dev"},
	}

	assert.Len(t, FilterSpaces(spaces, "zoo-labs", ""), 2)
	assert.Len(t, FilterSpaces(spaces, "zoo-labs", "prod"), 1)
	assert.Len(t, FilterSpaces(spaces, "", "dev"), 2)
	assert.Len(t, FilterSpaces(spaces, "", ""), 3)
}

func TestFilterSpaceUsers(t *testing.T) {
	users := []SpaceUsers{
		{Foundation: "east", Organization: "zoo-labs", Space: "dev"},
		{Foundation: "west", Organization: "zoo-labs", Space: "dev"},
	}

	assert.Len(t, FilterSpaceUsers(users, "east", "", ""), 1)
	assert.Len(t, FilterSpaceUsers(users, "", "zoo-labs", "dev"), 2)
	assert.Empty(t, FilterSpaceUsers(users, "north", "", ""))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := Paginate(items, 1, 2)
	assert.Equal(t, []int{3, 4}, page.Content)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)
}
