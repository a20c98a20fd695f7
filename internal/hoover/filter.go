package hoover

import "strings"

// DefaultPageSize is used when a caller does not name a page size.
const DefaultPageSize = 10

// Page is one slice of a larger list.
type Page[T any] struct {
	Content       []T   `json:"content"`
	PageNumber    int   `json:"pageNumber"`
	PageSize      int   `json:"pageSize"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// Paginate slices items into the requested zero-based page, clamping
// out-of-range requests the same way the butler package does.
func Paginate[T any](items []T, pageNumber, pageSize int) Page[T] {
	if pageNumber < 0 {
		pageNumber = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize

	start := pageNumber * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return Page[T]{
		Content:       items[start:end],
		PageNumber:    pageNumber,
		PageSize:      pageSize,
		TotalElements: int64(total),
		TotalPages:    totalPages,
	}
}

// FilterOrganizations returns organizations whose name contains the
// pattern, case-insensitively. An empty pattern matches everything.
func FilterOrganizations(organizations []Organization, pattern string) []Organization {
	if pattern == "" {
		return organizations
	}

	needle := strings.ToLower(pattern)
	var filtered []Organization
	for _, org := range organizations {
		if strings.Contains(strings.ToLower(org.Name), needle) {
			filtered = append(filtered, org)
		}
	}
	return filtered
}

// FilterSpaces returns spaces matching the given organization and name
// pattern. Empty criteria match everything.
func FilterSpaces(spaces []Space, organization, pattern string) []Space {
	needle := strings.ToLower(pattern)
	var filtered []Space
	for _, space := range spaces {
		if organization != "" && !strings.EqualFold(space.Organization, organization) {
			continue
		}
		if pattern != "" && !strings.Contains(strings.ToLower(space.Name), needle) {
			continue
		}
		filtered = append(filtered, space)
	}
	return filtered
}

// FilterSpaceUsers returns space user records matching the given
// foundation, organization, and space. Empty criteria match everything.
func FilterSpaceUsers(users []SpaceUsers, foundation, organization, space string) []SpaceUsers {
	var filtered []SpaceUsers
	for _, su := range users {
		if foundation != "" && !strings.EqualFold(su.Foundation, foundation) {
			continue
		}
		if organization != "" && !strings.EqualFold(su.Organization, organization) {
			continue
		}
		if space != "" && !strings.EqualFold(su.Space, space) {
			continue
		}
		filtered = append(filtered, su)
	}
	return filtered
}

// EntryField returns the string value of one key in a schemaless
// inventory entry. Missing or non-string values come back empty.
func EntryField(entry map[string]any, key string) string {
	value, _ := entry[key].(string)
	return value
}

// FilterEntries returns the inventory entries matching the given field
// criteria. Exact criteria compare ignoring case; pattern criteria
// match case-insensitive substrings. Empty criterion values are
// skipped.
func FilterEntries(entries []map[string]any, exact, patterns map[string]string) []map[string]any {
	filtered := entries
	for key, want := range exact {
		if want == "" {
			continue
		}
		var kept []map[string]any
		for _, entry := range filtered {
			if strings.EqualFold(EntryField(entry, key), want) {
				kept = append(kept, entry)
			}
		}
		filtered = kept
	}
	for key, pattern := range patterns {
		if pattern == "" {
			continue
		}
		needle := strings.ToLower(pattern)
		var kept []map[string]any
		for _, entry := range filtered {
			if strings.Contains(strings.ToLower(EntryField(entry, key)), needle) {
				kept = append(kept, entry)
			}
		}
		filtered = kept
	}
	return filtered
}
