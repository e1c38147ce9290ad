package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
	"github.com/divvyup/divvy/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "divvy-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func addFriendRow(t *testing.T, store storage.Store, owner, memberID, name, nickname string) {
	t.Helper()
	now := time.Now().Unix()
	err := store.UpsertFriend(context.Background(), &models.Friend{
		OwnerEmail:  owner,
		MemberID:    memberID,
		DisplayName: name,
		Nickname:    nickname,
		Status:      string(models.FriendStatusFriend),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("UpsertFriend failed: %v", err)
	}
}

func TestMergeIDs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	merger := NewMerger(store)

	t.Run("creates an alias edge", func(t *testing.T) {
		result, err := merger.MergeIDs(ctx, "old-id", "new-id", "actor@example.com")
		if err != nil {
			t.Fatalf("MergeIDs failed: %v", err)
		}
		if result.CanonicalID != "new-id" {
			t.Errorf("canonical = %s, want new-id", result.CanonicalID)
		}
		if result.AlreadyExisted {
			t.Error("expected a fresh edge")
		}

		resolved, err := ResolveCanonical(ctx, store, "old-id")
		if err != nil {
			t.Fatalf("ResolveCanonical failed: %v", err)
		}
		if resolved != "new-id" {
			t.Errorf("resolved = %s, want new-id", resolved)
		}
	})

	t.Run("repeating an identical merge is a no-op", func(t *testing.T) {
		result, err := merger.MergeIDs(ctx, "old-id", "new-id", "actor@example.com")
		if err != nil {
			t.Fatalf("MergeIDs failed: %v", err)
		}
		if !result.AlreadyExisted {
			t.Error("expected AlreadyExisted for repeated merge")
		}
		if result.CanonicalID != "new-id" {
			t.Errorf("canonical = %s, want new-id", result.CanonicalID)
		}
	})

	t.Run("merging into a deeper chain resolves transitively", func(t *testing.T) {
		// new-id itself becomes an alias of final-id; a later merge targeting
		// new-id must land on final-id.
		if _, err := merger.MergeIDs(ctx, "new-id", "final-id", "actor@example.com"); err != nil {
			t.Fatalf("MergeIDs failed: %v", err)
		}
		result, err := merger.MergeIDs(ctx, "third-id", "new-id", "actor@example.com")
		if err != nil {
			t.Fatalf("MergeIDs failed: %v", err)
		}
		if result.CanonicalID != "final-id" {
			t.Errorf("canonical = %s, want final-id", result.CanonicalID)
		}
	})

	t.Run("self merge is a no-op success", func(t *testing.T) {
		result, err := merger.MergeIDs(ctx, "same", "same", "actor@example.com")
		if err != nil {
			t.Fatalf("MergeIDs failed: %v", err)
		}
		if result.CanonicalID != "same" {
			t.Errorf("canonical = %s, want same", result.CanonicalID)
		}
	})

	t.Run("rejects a merge that would close a cycle", func(t *testing.T) {
		_, err := merger.MergeIDs(ctx, "final-id", "old-id", "actor@example.com")
		if !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("rejects re-pointing an existing alias", func(t *testing.T) {
		_, err := merger.MergeIDs(ctx, "old-id", "unrelated-id", "actor@example.com")
		if !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("rejects empty member IDs", func(t *testing.T) {
		if _, err := merger.MergeIDs(ctx, "", "x", "actor@example.com"); !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestMergeUnlinkedFriends(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	merger := NewMerger(store)
	owner := "viewer@example.com"

	t.Run("folds B into A and aliases its ID", func(t *testing.T) {
		addFriendRow(t, store, owner, "id-a", "Sam", "")
		addFriendRow(t, store, owner, "id-b", "Sammy", "roomie")

		result, err := merger.MergeUnlinkedFriends(ctx, owner, "id-a", "id-b")
		if err != nil {
			t.Fatalf("MergeUnlinkedFriends failed: %v", err)
		}
		if result.CanonicalID != "id-a" {
			t.Errorf("canonical = %s, want id-a", result.CanonicalID)
		}

		// B's row is gone, its ID resolves to A, and A inherited the nickname.
		if _, err := store.GetFriend(ctx, owner, "id-b"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected id-b row gone, got %v", err)
		}
		resolved, err := ResolveCanonical(ctx, store, "id-b")
		if err != nil {
			t.Fatalf("ResolveCanonical failed: %v", err)
		}
		if resolved != "id-a" {
			t.Errorf("resolved = %s, want id-a", resolved)
		}
		rowA, err := store.GetFriend(ctx, owner, "id-a")
		if err != nil {
			t.Fatalf("GetFriend failed: %v", err)
		}
		if rowA.Nickname != "roomie" {
			t.Errorf("nickname = %q, want roomie", rowA.Nickname)
		}
	})

	t.Run("keeps an existing nickname on A", func(t *testing.T) {
		addFriendRow(t, store, owner, "id-c", "Pat", "neighbor")
		addFriendRow(t, store, owner, "id-d", "Patrick", "gym")

		if _, err := merger.MergeUnlinkedFriends(ctx, owner, "id-c", "id-d"); err != nil {
			t.Fatalf("MergeUnlinkedFriends failed: %v", err)
		}
		rowC, err := store.GetFriend(ctx, owner, "id-c")
		if err != nil {
			t.Fatalf("GetFriend failed: %v", err)
		}
		if rowC.Nickname != "neighbor" {
			t.Errorf("nickname = %q, want neighbor", rowC.Nickname)
		}
	})

	t.Run("rejects linked rows", func(t *testing.T) {
		addFriendRow(t, store, owner, "id-e", "Eve", "")
		now := time.Now().Unix()
		err := store.UpsertFriend(ctx, &models.Friend{
			OwnerEmail:       owner,
			MemberID:         "id-f",
			DisplayName:      "Frank",
			HasLinkedAccount: true,
			LinkedAccountID:  "some-account",
			Status:           string(models.FriendStatusFriend),
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			t.Fatalf("UpsertFriend failed: %v", err)
		}

		_, err = merger.MergeUnlinkedFriends(ctx, owner, "id-e", "id-f")
		if !errors.Is(err, storage.ErrAlreadyLinked) {
			t.Fatalf("expected ErrAlreadyLinked, got %v", err)
		}
	})

	t.Run("rejects rows the actor does not own", func(t *testing.T) {
		addFriendRow(t, store, "other@example.com", "id-g", "Gus", "")
		addFriendRow(t, store, owner, "id-h", "Gus", "")

		_, err := merger.MergeUnlinkedFriends(ctx, owner, "id-h", "id-g")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("merging an ID with itself is a no-op", func(t *testing.T) {
		result, err := merger.MergeUnlinkedFriends(ctx, owner, "id-a", "id-a")
		if err != nil {
			t.Fatalf("MergeUnlinkedFriends failed: %v", err)
		}
		if result.CanonicalID != "id-a" {
			t.Errorf("canonical = %s, want id-a", result.CanonicalID)
		}
	})
}
