// Package identity implements the account-identity linking engine: member ID
// normalization, alias graph resolution, merging, the invite claim pipeline
// and read-time friend deduplication.
package identity

import "strings"

// Normalize canonicalizes a raw member ID or email for comparison, storage
// and index lookups: lowercase, surrounding whitespace trimmed. Every write
// and every lookup in this subsystem must go through Normalize first;
// case-duplicate identities are the dominant class of historical data bugs
// the engine has to tolerate.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// NormalizeSet normalizes each ID and removes duplicates, preserving the
// order of first appearance. Empty IDs are dropped.
func NormalizeSet(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n := Normalize(id)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
