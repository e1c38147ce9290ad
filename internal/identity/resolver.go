package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// EdgeSource is the read surface of the alias graph the resolver walks.
// Both the storage layer and in-transaction snapshots implement it.
type EdgeSource interface {
	// AliasTarget returns the canonical member ID the given alias points at,
	// or ok=false if the ID has no outgoing edge.
	AliasTarget(ctx context.Context, memberID string) (target string, ok bool, err error)

	// AliasesOf returns every member ID with an edge pointing at canonicalID.
	AliasesOf(ctx context.Context, canonicalID string) ([]string, error)
}

// ResolveCanonical follows outgoing alias edges from id until an ID with no
// edge is found and returns it. An ID with no edge resolves to itself; it
// may be canonical or simply unlinked; the two are indistinguishable here.
//
// The walk keeps a visited set. If an ID repeats, the store holds a cycle:
// resolution stops and returns the repeated ID rather than looping. A cycle
// should be impossible to create through the merger, so seeing one is a
// data-integrity event; it is logged and the repeated ID is returned so
// reads stay available.
func ResolveCanonical(ctx context.Context, edges EdgeSource, id string) (string, error) {
	current := Normalize(id)
	visited := map[string]struct{}{}
	for {
		if _, seen := visited[current]; seen {
			slog.Warn("alias graph cycle detected during resolution",
				"member_id", id,
				"repeated_id", current,
			)
			return current, nil
		}
		visited[current] = struct{}{}

		target, ok, err := edges.AliasTarget(ctx, current)
		if err != nil {
			return "", fmt.Errorf("failed to resolve alias for %s: %w", current, err)
		}
		if !ok {
			return current, nil
		}
		current = Normalize(target)
	}
}

// EquivalentIDs computes the full equivalence set for a member ID: the
// canonical ID, every alias pointing at it, and the original input. This is
// the membership primitive for group and expense checks, since snapshots are
// never retroactively rewritten when new aliases appear, so any read path
// that compares member IDs directly instead of through this set will miss
// linked identities.
//
// The result is sorted for deterministic output; callers treat it as a set.
func EquivalentIDs(ctx context.Context, edges EdgeSource, id string) ([]string, error) {
	input := Normalize(id)
	canonical, err := ResolveCanonical(ctx, edges, input)
	if err != nil {
		return nil, err
	}

	aliases, err := edges.AliasesOf(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases of %s: %w", canonical, err)
	}

	set := map[string]struct{}{
		input:     {},
		canonical: {},
	}
	for _, a := range aliases {
		set[Normalize(a)] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Contains reports whether the normalized form of id is in the set.
// The set is assumed to be normalized already.
func Contains(set []string, id string) bool {
	n := Normalize(id)
	for _, s := range set {
		if s == n {
			return true
		}
	}
	return false
}
