package identity

import (
	"context"
	"reflect"
	"testing"
)

// fakeEdges is an in-memory EdgeSource for resolver tests.
type fakeEdges struct {
	edges map[string]string
}

func (f *fakeEdges) AliasTarget(_ context.Context, memberID string) (string, bool, error) {
	target, ok := f.edges[memberID]
	return target, ok, nil
}

func (f *fakeEdges) AliasesOf(_ context.Context, canonicalID string) ([]string, error) {
	var aliases []string
	for alias, target := range f.edges {
		if target == canonicalID {
			aliases = append(aliases, alias)
		}
	}
	return aliases, nil
}

func TestResolveCanonical(t *testing.T) {
	ctx := context.Background()

	t.Run("ID with no edge resolves to itself", func(t *testing.T) {
		edges := &fakeEdges{edges: map[string]string{}}
		got, err := ResolveCanonical(ctx, edges, "alice")
		if err != nil {
			t.Fatalf("ResolveCanonical failed: %v", err)
		}
		if got != "alice" {
			t.Errorf("got %s, want alice", got)
		}
	})

	t.Run("follows a chain transitively", func(t *testing.T) {
		edges := &fakeEdges{edges: map[string]string{
			"a": "b",
			"b": "c",
		}}
		got, err := ResolveCanonical(ctx, edges, "a")
		if err != nil {
			t.Fatalf("ResolveCanonical failed: %v", err)
		}
		if got != "c" {
			t.Errorf("got %s, want c", got)
		}
	})

	t.Run("normalizes input before walking", func(t *testing.T) {
		edges := &fakeEdges{edges: map[string]string{"a": "b"}}
		got, err := ResolveCanonical(ctx, edges, "  A  ")
		if err != nil {
			t.Fatalf("ResolveCanonical failed: %v", err)
		}
		if got != "b" {
			t.Errorf("got %s, want b", got)
		}
	})

	t.Run("terminates on a cycle", func(t *testing.T) {
		// Cycles cannot be created through the merger; this simulates a
		// corrupted store and checks the walk still returns.
		edges := &fakeEdges{edges: map[string]string{
			"a": "b",
			"b": "c",
			"c": "a",
		}}
		got, err := ResolveCanonical(ctx, edges, "a")
		if err != nil {
			t.Fatalf("ResolveCanonical failed: %v", err)
		}
		if got != "a" {
			t.Errorf("got %s, want the repeated ID a", got)
		}
	})
}

func TestEquivalentIDs(t *testing.T) {
	ctx := context.Background()
	edges := &fakeEdges{edges: map[string]string{
		"a": "c",
		"b": "c",
	}}

	t.Run("includes input, canonical and all aliases, sorted", func(t *testing.T) {
		got, err := EquivalentIDs(ctx, edges, "a")
		if err != nil {
			t.Fatalf("EquivalentIDs failed: %v", err)
		}
		want := []string{"a", "b", "c"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("same set from any member of the class", func(t *testing.T) {
		fromCanonical, err := EquivalentIDs(ctx, edges, "c")
		if err != nil {
			t.Fatalf("EquivalentIDs failed: %v", err)
		}
		fromAlias, err := EquivalentIDs(ctx, edges, "b")
		if err != nil {
			t.Fatalf("EquivalentIDs failed: %v", err)
		}
		if !reflect.DeepEqual(fromCanonical, fromAlias) {
			t.Errorf("sets differ: %v vs %v", fromCanonical, fromAlias)
		}
	})

	t.Run("unlinked ID is its own singleton set", func(t *testing.T) {
		got, err := EquivalentIDs(ctx, edges, "z")
		if err != nil {
			t.Fatalf("EquivalentIDs failed: %v", err)
		}
		want := []string{"z"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestContains(t *testing.T) {
	set := []string{"a", "b"}
	if !Contains(set, "A ") {
		t.Error("expected normalized match for 'A '")
	}
	if Contains(set, "c") {
		t.Error("unexpected match for 'c'")
	}
}
