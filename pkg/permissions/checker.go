// Package permissions checks held permission codes against requirements.
//
// Permission Format:
//   - "*" - every permission within the current tenant
//   - "grade:*" - every action in a domain
//   - "grade:finalize" - a specific domain:action pair
package permissions

import (
	"strings"
)

// Wildcard is the sentinel granting every permission in the current tenant.
const Wildcard = "*"

// Has checks if the held permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "timetable:*" matches "timetable:generate", "timetable:finalize", etc.
//   - Exact match otherwise
func Has(held []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range held {
		if p == Wildcard {
			return true
		}
		if p == required {
			return true
		}
		if strings.HasSuffix(p, ":*") {
			prefix := strings.TrimSuffix(p, ":*")
			if strings.HasPrefix(required, prefix+":") {
				return true
			}
		}
	}
	return false
}

// HasAny checks if the held set covers at least one of the required codes.
func HasAny(held []string, required []string) bool {
	for _, req := range required {
		if Has(held, req) {
			return true
		}
	}
	return false
}

// HasAll checks if the held set covers every one of the required codes.
func HasAll(held []string, required []string) bool {
	for _, req := range required {
		if !Has(held, req) {
			return false
		}
	}
	return true
}

// Merge merges multiple permission sets, removing duplicates. Used when
// computing the union over a user's roles.
func Merge(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}

// Domain returns the domain part of a domain:action code, or the code itself
// when it has no separator.
func Domain(code string) string {
	if i := strings.Index(code, ":"); i >= 0 {
		return code[:i]
	}
	return code
}
