// Organization name helpers.

package util

import "strings"

// NormalizeOrgName ensures org names are always lowercase and trimmed
// Use this function whenever comparing or indexing org names
func NormalizeOrgName(org string) string {
	return strings.ToLower(strings.TrimSpace(org))
}

// DisplayOrgName trims surrounding whitespace but keeps the caller's casing.
func DisplayOrgName(org string) string {
	return strings.Join(strings.Fields(org), " ")
}
