package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/divvyup/divvy/internal/models"
	"github.com/divvyup/divvy/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "divvy-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	account := models.NewAccount("user@example.com", "User", "hash")
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		dup := models.NewAccount("user@example.com", "Other", "hash")
		if err := store.CreateAccount(ctx, dup); !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("lookup by email, id and canonical member id agree", func(t *testing.T) {
		byEmail, err := store.GetAccountByEmail(ctx, account.Email)
		if err != nil {
			t.Fatalf("GetAccountByEmail failed: %v", err)
		}
		byID, err := store.GetAccountByID(ctx, account.ID)
		if err != nil {
			t.Fatalf("GetAccountByID failed: %v", err)
		}
		byMember, err := store.GetAccountByCanonicalMemberID(ctx, account.CanonicalMemberID)
		if err != nil {
			t.Fatalf("GetAccountByCanonicalMemberID failed: %v", err)
		}
		if byEmail.ID != account.ID || byID.ID != account.ID || byMember.ID != account.ID {
			t.Error("lookups disagree on the account")
		}
	})

	t.Run("missing account is ErrNotFound", func(t *testing.T) {
		if _, err := store.GetAccountByEmail(ctx, "nobody@example.com"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("LookupAccountByMemberID falls back to the alias cache", func(t *testing.T) {
		if err := store.AppendAliasMemberID(ctx, account.ID, "cached-alias"); err != nil {
			t.Fatalf("AppendAliasMemberID failed: %v", err)
		}
		found, err := store.LookupAccountByMemberID(ctx, "cached-alias")
		if err != nil {
			t.Fatalf("LookupAccountByMemberID failed: %v", err)
		}
		if found.ID != account.ID {
			t.Errorf("got account %s, want %s", found.ID, account.ID)
		}
		if !found.HasAlias("cached-alias") {
			t.Errorf("alias cache %v missing cached-alias", found.AliasMemberIDs)
		}
	})

	t.Run("LookupAccountByMemberID falls back to the legacy column", func(t *testing.T) {
		legacy := models.NewAccount("legacy@example.com", "Legacy", "hash")
		legacy.LinkedMemberID = "legacy-member-id"
		if err := store.CreateAccount(ctx, legacy); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
		found, err := store.LookupAccountByMemberID(ctx, "legacy-member-id")
		if err != nil {
			t.Fatalf("LookupAccountByMemberID failed: %v", err)
		}
		if found.ID != legacy.ID {
			t.Errorf("got account %s, want %s", found.ID, legacy.ID)
		}
	})

	t.Run("AppendAliasMemberID is idempotent", func(t *testing.T) {
		if err := store.AppendAliasMemberID(ctx, account.ID, "cached-alias"); err != nil {
			t.Fatalf("repeated AppendAliasMemberID failed: %v", err)
		}
		reloaded, err := store.GetAccountByID(ctx, account.ID)
		if err != nil {
			t.Fatalf("GetAccountByID failed: %v", err)
		}
		count := 0
		for _, id := range reloaded.AliasMemberIDs {
			if id == "cached-alias" {
				count++
			}
		}
		if count != 1 {
			t.Errorf("alias appears %d times, want 1", count)
		}
	})

	t.Run("DeleteAccount removes the row and its cache", func(t *testing.T) {
		if err := store.DeleteAccount(ctx, account.ID); err != nil {
			t.Fatalf("DeleteAccount failed: %v", err)
		}
		if _, err := store.GetAccountByID(ctx, account.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.LookupAccountByMemberID(ctx, "cached-alias"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected cache row cascaded, got %v", err)
		}
		if err := store.DeleteAccount(ctx, account.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on double delete, got %v", err)
		}
	})
}

func TestAliasEdges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("insert and read back", func(t *testing.T) {
		created, err := store.CreateAliasEdge(ctx, "a", "b", "actor")
		if err != nil {
			t.Fatalf("CreateAliasEdge failed: %v", err)
		}
		if !created {
			t.Error("expected a fresh edge")
		}
		target, ok, err := store.AliasTarget(ctx, "a")
		if err != nil || !ok || target != "b" {
			t.Errorf("AliasTarget = (%s, %v, %v), want (b, true, nil)", target, ok, err)
		}
	})

	t.Run("identical repeat reports created=false", func(t *testing.T) {
		created, err := store.CreateAliasEdge(ctx, "a", "b", "actor")
		if err != nil {
			t.Fatalf("CreateAliasEdge failed: %v", err)
		}
		if created {
			t.Error("expected created=false on repeat")
		}
	})

	t.Run("re-pointing is a conflict", func(t *testing.T) {
		if _, err := store.CreateAliasEdge(ctx, "a", "elsewhere", "actor"); !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("closing a cycle is a conflict", func(t *testing.T) {
		if _, err := store.CreateAliasEdge(ctx, "b", "c", "actor"); err != nil {
			t.Fatalf("CreateAliasEdge failed: %v", err)
		}
		// a -> b -> c; c -> a would close the loop.
		if _, err := store.CreateAliasEdge(ctx, "c", "a", "actor"); !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("AliasesOf lists direct in-edges sorted", func(t *testing.T) {
		if _, err := store.CreateAliasEdge(ctx, "z", "b", "actor"); err != nil {
			t.Fatalf("CreateAliasEdge failed: %v", err)
		}
		aliases, err := store.AliasesOf(ctx, "b")
		if err != nil {
			t.Fatalf("AliasesOf failed: %v", err)
		}
		if len(aliases) != 2 || aliases[0] != "a" || aliases[1] != "z" {
			t.Errorf("got %v, want [a z]", aliases)
		}
	})

	t.Run("DeleteAliasEdgesTouching clears both directions", func(t *testing.T) {
		n, err := store.DeleteAliasEdgesTouching(ctx, "b")
		if err != nil {
			t.Fatalf("DeleteAliasEdgesTouching failed: %v", err)
		}
		// a -> b, z -> b and b -> c all touch b.
		if n != 3 {
			t.Errorf("deleted %d edges, want 3", n)
		}
	})
}

func TestLinkFriendRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	account := models.NewAccount("real@example.com", "Real Name", "hash")
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	now := time.Now().Unix()
	upsert := func(owner, nickname string) {
		t.Helper()
		err := store.UpsertFriend(ctx, &models.Friend{
			OwnerEmail:  owner,
			MemberID:    "placeholder",
			DisplayName: "Real Name",
			Nickname:    nickname,
			Status:      string(models.FriendStatusFriend),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			t.Fatalf("UpsertFriend failed: %v", err)
		}
	}
	upsert("one@example.com", "Real Name")
	upsert("two@example.com", "buddy")

	n, err := store.LinkFriendRows(ctx, "placeholder", account)
	if err != nil {
		t.Fatalf("LinkFriendRows failed: %v", err)
	}
	if n != 2 {
		t.Errorf("linked %d rows, want 2", n)
	}

	t.Run("nickname equal to the real name is cleared with audit", func(t *testing.T) {
		row, err := store.GetFriend(ctx, "one@example.com", "placeholder")
		if err != nil {
			t.Fatalf("GetFriend failed: %v", err)
		}
		if row.Nickname != "" {
			t.Errorf("nickname = %q, want cleared", row.Nickname)
		}
		if row.OriginalNickname != "Real Name" {
			t.Errorf("original nickname = %q, want Real Name", row.OriginalNickname)
		}
	})

	t.Run("distinct nickname is kept", func(t *testing.T) {
		row, err := store.GetFriend(ctx, "two@example.com", "placeholder")
		if err != nil {
			t.Fatalf("GetFriend failed: %v", err)
		}
		if row.Nickname != "buddy" {
			t.Errorf("nickname = %q, want buddy", row.Nickname)
		}
		if !row.HasLinkedAccount || row.LinkedAccountID != account.ID {
			t.Errorf("row not linked: %+v", row)
		}
	})

	t.Run("already linked rows are skipped on retry", func(t *testing.T) {
		n, err := store.LinkFriendRows(ctx, "placeholder", account)
		if err != nil {
			t.Fatalf("LinkFriendRows failed: %v", err)
		}
		if n != 0 {
			t.Errorf("linked %d rows on retry, want 0", n)
		}
	})
}

func TestClaimInviteTransition(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	token := &models.InviteToken{
		CreatorAccountID: "creator",
		CreatorEmail:     "creator@example.com",
		TargetMemberID:   "target",
		TargetName:       "Target",
		ExpiresAt:        time.Now().Add(time.Hour).Unix(),
	}
	if err := store.CreateInvite(ctx, token); err != nil {
		t.Fatalf("CreateInvite failed: %v", err)
	}

	t.Run("first claim wins", func(t *testing.T) {
		if err := store.ClaimInvite(ctx, token.ID, "winner"); err != nil {
			t.Fatalf("ClaimInvite failed: %v", err)
		}
		reloaded, err := store.GetInvite(ctx, token.ID)
		if err != nil {
			t.Fatalf("GetInvite failed: %v", err)
		}
		if reloaded.ClaimedBy != "winner" {
			t.Errorf("ClaimedBy = %s, want winner", reloaded.ClaimedBy)
		}
		if reloaded.ClaimedAt == 0 {
			t.Error("ClaimedAt not set")
		}
	})

	t.Run("same account may retry", func(t *testing.T) {
		before, _ := store.GetInvite(ctx, token.ID)
		if err := store.ClaimInvite(ctx, token.ID, "winner"); err != nil {
			t.Fatalf("retry ClaimInvite failed: %v", err)
		}
		after, _ := store.GetInvite(ctx, token.ID)
		if after.ClaimedAt != before.ClaimedAt {
			t.Error("retry must not move the claim timestamp")
		}
	})

	t.Run("second claimer loses", func(t *testing.T) {
		err := store.ClaimInvite(ctx, token.ID, "loser")
		if !errors.Is(err, storage.ErrAlreadyClaimed) {
			t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
		}
	})

	t.Run("unknown token is ErrNotFound", func(t *testing.T) {
		err := store.ClaimInvite(ctx, "missing", "anyone")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestGroupSnapshots(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	group := &models.Group{
		Name:       "Trip",
		OwnerEmail: "owner@example.com",
		Members: []models.GroupMember{
			{MemberID: "m1", Name: "One"},
			{MemberID: "m2", Name: "Two", LinkedEmail: "two@example.com"},
		},
	}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	t.Run("RenameGroupMember changes name and email only", func(t *testing.T) {
		n, err := store.RenameGroupMember(ctx, "m1", "One Renamed", "one@example.com")
		if err != nil {
			t.Fatalf("RenameGroupMember failed: %v", err)
		}
		if n != 1 {
			t.Errorf("renamed %d entries, want 1", n)
		}
		reloaded, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if !reloaded.HasMemberID("m1") {
			t.Fatal("member ID must never change")
		}
		for _, m := range reloaded.Members {
			if m.MemberID == "m1" && (m.Name != "One Renamed" || m.LinkedEmail != "one@example.com") {
				t.Errorf("member = %+v", m)
			}
		}
	})

	t.Run("ListGroupsContainingMember matches exact IDs", func(t *testing.T) {
		groups, err := store.ListGroupsContainingMember(ctx, "m2")
		if err != nil {
			t.Fatalf("ListGroupsContainingMember failed: %v", err)
		}
		if len(groups) != 1 || groups[0].ID != group.ID {
			t.Errorf("got %d groups", len(groups))
		}
		none, err := store.ListGroupsContainingMember(ctx, "unknown")
		if err != nil {
			t.Fatalf("ListGroupsContainingMember failed: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("got %d groups for unknown member, want 0", len(none))
		}
	})

	t.Run("UnlinkGroupMembers clears the email reference", func(t *testing.T) {
		n, err := store.UnlinkGroupMembers(ctx, "two@example.com")
		if err != nil {
			t.Fatalf("UnlinkGroupMembers failed: %v", err)
		}
		if n != 1 {
			t.Errorf("unlinked %d entries, want 1", n)
		}
		reloaded, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		for _, m := range reloaded.Members {
			if m.MemberID == "m2" && (m.LinkedEmail != "" || m.Name != "Two") {
				t.Errorf("member = %+v", m)
			}
		}
	})

	t.Run("UpdateGroup replaces the snapshot", func(t *testing.T) {
		group.Members = []models.GroupMember{{MemberID: "m3", Name: "Three"}}
		if err := store.UpdateGroup(ctx, group); err != nil {
			t.Fatalf("UpdateGroup failed: %v", err)
		}
		reloaded, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if len(reloaded.Members) != 1 || reloaded.Members[0].MemberID != "m3" {
			t.Errorf("members = %+v", reloaded.Members)
		}
	})
}

func TestExpenseVisibility(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	expense := &models.Expense{
		Description:       "Lunch",
		Amount:            20,
		PayerMemberID:     "m1",
		Participants:      []models.ExpenseParticipant{{MemberID: "m1", Name: "One", Share: 20}},
		ParticipantEmails: []string{"one@example.com"},
		OwnerEmail:        "one@example.com",
	}
	if err := store.CreateExpense(ctx, expense); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	t.Run("AddExpenseVisibility reports idempotence", func(t *testing.T) {
		added, err := store.AddExpenseVisibility(ctx, expense.ID, "new@example.com")
		if err != nil {
			t.Fatalf("AddExpenseVisibility failed: %v", err)
		}
		if !added {
			t.Error("expected added=true for a new email")
		}
		added, err = store.AddExpenseVisibility(ctx, expense.ID, "new@example.com")
		if err != nil {
			t.Fatalf("AddExpenseVisibility failed: %v", err)
		}
		if added {
			t.Error("expected added=false on repeat")
		}
	})

	t.Run("LinkExpenseParticipants records the email on the snapshot", func(t *testing.T) {
		account := models.NewAccount("new@example.com", "New", "hash")
		n, err := store.LinkExpenseParticipants(ctx, "m1", account)
		if err != nil {
			t.Fatalf("LinkExpenseParticipants failed: %v", err)
		}
		if n != 1 {
			t.Errorf("linked %d participants, want 1", n)
		}
		reloaded, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if reloaded.Participants[0].LinkedEmail != "new@example.com" {
			t.Errorf("linked email = %s", reloaded.Participants[0].LinkedEmail)
		}
	})

	t.Run("ListExpensesInvolvingMember matches the snapshot", func(t *testing.T) {
		expenses, err := store.ListExpensesInvolvingMember(ctx, "m1")
		if err != nil {
			t.Fatalf("ListExpensesInvolvingMember failed: %v", err)
		}
		if len(expenses) != 1 || expenses[0].ID != expense.ID {
			t.Errorf("got %d expenses", len(expenses))
		}
	})
}
