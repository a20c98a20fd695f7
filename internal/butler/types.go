package butler

import "encoding/json"

// Organization is one Cloud Foundry organization from the snapshot.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Space is one Cloud Foundry space from the snapshot.
type Space struct {
	Organization string `json:"organization"`
	Name         string `json:"name"`
}

// Demographics holds foundation-wide account and structure counts.
type Demographics struct {
	Organizations   int64 `json:"total-organizations"`
	Spaces          int64 `json:"total-spaces"`
	UserAccounts    int64 `json:"total-user-accounts"`
	ServiceAccounts int64 `json:"total-service-accounts"`
}

// SpaceUsers lists the users holding roles in one organization and space.
type SpaceUsers struct {
	Organization string   `json:"organization"`
	Space        string   `json:"space"`
	Auditors     []string `json:"auditors"`
	Developers   []string `json:"developers"`
	Managers     []string `json:"managers"`
	Users        []string `json:"users"`
}

// SnapshotDetail is the full workload inventory of a foundation.
// Individual entries stay schemaless; the reporting backend owns their
// shape.
type SnapshotDetail struct {
	Applications             []map[string]any `json:"applications"`
	ServiceInstances         []map[string]any `json:"service-instances"`
	ApplicationRelationships []map[string]any `json:"application-relationships"`
	UserAccounts             []string         `json:"user-accounts"`
	ServiceAccounts          []string         `json:"service-accounts"`
}

// Workloads is a filtered subset of the inventory (dormant or legacy).
type Workloads struct {
	Applications             []map[string]any `json:"applications"`
	ServiceInstances         []map[string]any `json:"service-instances"`
	ApplicationRelationships []map[string]any `json:"application-relationships"`
}

// ProductCatalog is the Tanzu Network product catalog. Entries stay
// schemaless apart from the name used for matching.
type ProductCatalog struct {
	Products []map[string]any `json:"products"`
}

// Policies is the full policy configuration currently in effect.
type Policies struct {
	ApplicationPolicies     []json.RawMessage `json:"application-policies"`
	EndpointPolicies        []json.RawMessage `json:"endpoint-policies"`
	HygienePolicies         []json.RawMessage `json:"hygiene-policies"`
	LegacyPolicies          []json.RawMessage `json:"legacy-policies"`
	QueryPolicies           []json.RawMessage `json:"query-policies"`
	ServiceInstancePolicies []json.RawMessage `json:"service-instance-policies"`
}
