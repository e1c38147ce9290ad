package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/divvyup/divvy/internal/storage"
)

// MergeResult reports the outcome of a merge operation.
type MergeResult struct {
	// CanonicalID is the final canonical member ID after the merge.
	CanonicalID string

	// AlreadyExisted is true when an identical edge was already present and
	// no new edge was created.
	AlreadyExisted bool
}

// Merger creates alias edges between member IDs. Both operations are
// idempotent: repeating an identical call succeeds without duplicating edges.
type Merger struct {
	store storage.Store
}

// NewMerger creates a Merger backed by the given store.
func NewMerger(store storage.Store) *Merger {
	return &Merger{store: store}
}

// MergeIDs declares source an alias of target by creating the edge
// source → resolve(target).
//
// Rules:
//   - source == target: no-op success, no edge created.
//   - source already has an outgoing edge: succeeds only if it resolves to
//     the same target (AlreadyExisted=true); anything else is ErrConflict.
//     An alias is never silently re-pointed.
//   - resolving target must not reach source: ErrConflict (cycle).
//
// actorEmail identifies who asked for the merge; it is recorded on the edge
// and must come from the authenticated caller, never from request input.
func (m *Merger) MergeIDs(ctx context.Context, source, target, actorEmail string) (*MergeResult, error) {
	source = Normalize(source)
	target = Normalize(target)
	if source == "" || target == "" {
		return nil, fmt.Errorf("%w: empty member id", storage.ErrConflict)
	}

	if source == target {
		canonical, err := ResolveCanonical(ctx, m.store, source)
		if err != nil {
			return nil, err
		}
		return &MergeResult{CanonicalID: canonical}, nil
	}

	canonical, err := ResolveCanonical(ctx, m.store, target)
	if err != nil {
		return nil, err
	}
	if canonical == source {
		return nil, fmt.Errorf("%w: merging %s into %s would create a cycle",
			storage.ErrConflict, source, target)
	}

	// Existing edge: idempotent repeat or re-point conflict.
	if existing, ok, err := m.store.AliasTarget(ctx, source); err != nil {
		return nil, err
	} else if ok {
		existingCanonical, err := ResolveCanonical(ctx, m.store, existing)
		if err != nil {
			return nil, err
		}
		if existingCanonical == canonical {
			return &MergeResult{CanonicalID: canonical, AlreadyExisted: true}, nil
		}
		return nil, fmt.Errorf("%w: %s is already an alias of %s",
			storage.ErrConflict, source, existingCanonical)
	}

	// The store re-checks both preconditions inside the insert transaction,
	// so a racing merge on the same source loses with ErrConflict.
	created, err := m.store.CreateAliasEdge(ctx, source, canonical, actorEmail)
	if err != nil {
		return nil, err
	}

	slog.Info("member ids merged",
		"source", source,
		"canonical", canonical,
		"actor", actorEmail,
		"already_existed", !created,
	)
	return &MergeResult{CanonicalID: canonical, AlreadyExisted: !created}, nil
}

// MergeUnlinkedFriends merges two rows of the actor's own friend list that
// turned out to be the same person. idA becomes canonical; idB becomes its
// alias, and B's row is folded into A's.
//
// Neither row may be linked to a real account; linked identities carry
// authorization requirements and must go through the invite claim pipeline.
func (m *Merger) MergeUnlinkedFriends(ctx context.Context, actorEmail, idA, idB string) (*MergeResult, error) {
	actorEmail = Normalize(actorEmail)
	idA = Normalize(idA)
	idB = Normalize(idB)

	if idA == idB {
		return &MergeResult{CanonicalID: idA}, nil
	}

	rowA, err := m.store.GetFriend(ctx, actorEmail, idA)
	if err != nil {
		return nil, fmt.Errorf("friend %s: %w", idA, err)
	}
	rowB, err := m.store.GetFriend(ctx, actorEmail, idB)
	if err != nil {
		return nil, fmt.Errorf("friend %s: %w", idB, err)
	}

	if rowA.HasLinkedAccount || rowB.HasLinkedAccount {
		return nil, fmt.Errorf("%w: linked friends must be merged through the invite flow",
			storage.ErrAlreadyLinked)
	}

	result, err := m.MergeIDs(ctx, idB, idA, actorEmail)
	if err != nil {
		return nil, err
	}

	// Fold B into A: keep A's row, inherit B's nickname if A has none,
	// then drop B's row. Re-running after a partial failure repeats the
	// same writes, so each step is safe on its own.
	if rowA.Nickname == "" && rowB.Nickname != "" {
		rowA.Nickname = rowB.Nickname
		rowA.UpdatedAt = time.Now().Unix()
		if err := m.store.UpsertFriend(ctx, rowA); err != nil {
			return nil, fmt.Errorf("failed to update surviving friend row: %w", err)
		}
	}
	if err := m.store.DeleteFriend(ctx, actorEmail, idB); err != nil {
		return nil, fmt.Errorf("failed to remove merged friend row: %w", err)
	}

	slog.Info("unlinked friends merged",
		"owner", actorEmail,
		"canonical", result.CanonicalID,
		"alias", idB,
	)
	return result, nil
}
